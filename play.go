package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wricardo/gsp-board/game/config"
	"github.com/wricardo/gsp-board/game/economy"
	"github.com/wricardo/gsp-board/game/engine"
	"github.com/wricardo/gsp-board/game/resolver"
	"github.com/wricardo/gsp-board/game/service"
	"github.com/wricardo/gsp-board/game/session"
)

const playHelp = `Commands:
  <enter>         roll the dice, confirm the path, or acknowledge an event
  r               roll the dice
  1               take the path and end the turn
  2               trigger the map event
  t EVENT [KIND]  force a map event (NOTHING, ENEMY, ITEM, ALLY)
  a               acknowledge the running event
  e               end the turn now
  s               sell carried resources
  h               show this help
  q               quit
`

// terminalPlayer drives one match from a terminal. It doubles as the match's
// Notifier so path options are shown as soon as the machine presents them.
type terminalPlayer struct {
	svc     service.GameService
	matchID string
	out     io.Writer
	printer *message.Printer
	mu      sync.Mutex
}

func newTerminalPlayer(out io.Writer) *terminalPlayer {
	return &terminalPlayer{
		out:     out,
		printer: message.NewPrinter(language.English),
	}
}

// BroadcastEvent implements service.Notifier
func (p *terminalPlayer) BroadcastEvent(matchID string, event string, data interface{}) {
	if event != service.EventPathOptions {
		return
	}
	opts, ok := data.(service.PathOptions)
	if !ok {
		return
	}
	p.printf("  Travel %d spaces. [1] take the path  [2] map event\n", opts.TravelDistance)
}

func (p *terminalPlayer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printer.Fprintf(p.out, format, args...)
}

// runPlay starts a match and reads commands from in until quit or EOF
func runPlay(ctx context.Context, settings config.Settings, configID string, seed uint64, in io.Reader, out io.Writer, logger *slog.Logger) error {
	player := newTerminalPlayer(out)

	var opts []session.Option
	if seed != 0 {
		opts = append(opts, session.WithDice(func() engine.DieRoller { return engine.NewRandomDie(seed) }))
	}
	svc, _, err := initializeServices(settings, player, logger, opts...)
	if err != nil {
		return err
	}
	player.svc = svc
	return player.play(ctx, configID, in)
}

// play creates a match from configID and runs commands from in
func (p *terminalPlayer) play(ctx context.Context, configID string, in io.Reader) error {
	info, err := p.svc.CreateMatch(ctx, configID)
	if err != nil {
		return err
	}
	p.matchID = info.ID
	p.printf("%s: %d players, %d gold each. Type h for help.\n",
		info.MatchConfig.Name, info.MatchConfig.NumPlayers, info.MatchConfig.StartingCurrency)
	p.status(ctx, &info.Turn)

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.printf("> ")
		if !scanner.Scan() {
			p.printf("\n")
			return scanner.Err()
		}
		quit, err := p.handle(ctx, strings.Fields(scanner.Text()))
		if err != nil {
			p.printf("  %v\n", err)
		}
		if quit {
			p.printf("Bye.\n")
			return nil
		}
	}
}

var errUnknownCommand = errors.New("unknown command, type h for help")

// handle runs one command line. It reports whether the player quit.
func (p *terminalPlayer) handle(ctx context.Context, fields []string) (bool, error) {
	cmd := ""
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}

	var (
		result *service.TurnResult
		err    error
	)
	switch cmd {
	case "":
		result, err = p.next(ctx)
	case "r", "1":
		result, err = p.svc.Confirm(ctx, p.matchID)
	case "2":
		result, err = p.svc.RequestAction(ctx, p.matchID)
	case "t":
		if len(fields) < 2 {
			return false, fmt.Errorf("%w: t needs an event type", service.ErrInvalidInput)
		}
		kind := ""
		if len(fields) > 2 {
			kind = fields[2]
		}
		result, err = p.svc.TriggerAction(ctx, p.matchID, fields[1], kind)
	case "a":
		result, err = p.svc.Acknowledge(ctx, p.matchID)
	case "e":
		result, err = p.svc.EndTurn(ctx, p.matchID)
	case "s":
		return false, p.sell(ctx)
	case "h", "help", "?":
		p.printf("%s", playHelp)
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	default:
		return false, errUnknownCommand
	}
	if err != nil {
		return false, err
	}
	p.report(ctx, result)
	return false, nil
}

// next picks the signal the enter key stands for in the current state
func (p *terminalPlayer) next(ctx context.Context) (*service.TurnResult, error) {
	info, err := p.svc.GetMatch(ctx, p.matchID)
	if err != nil {
		return nil, err
	}
	if info.Turn.State == engine.DoAction {
		return p.svc.Acknowledge(ctx, p.matchID)
	}
	return p.svc.Confirm(ctx, p.matchID)
}

func (p *terminalPlayer) sell(ctx context.Context) error {
	info, err := p.svc.GetMatch(ctx, p.matchID)
	if err != nil {
		return err
	}
	sale, err := p.svc.Sell(ctx, p.matchID, info.Turn.Status.PlayerID)
	if err != nil {
		return err
	}
	p.printf("  Sold for %d gold, credited to %s.\n", sale.Credited, sale.CreditedTo)

	info, err = p.svc.GetMatch(ctx, p.matchID)
	if err != nil {
		return err
	}
	p.status(ctx, &info.Turn)
	return nil
}

func (p *terminalPlayer) report(ctx context.Context, result *service.TurnResult) {
	for _, tr := range result.Transitions {
		switch {
		case tr.Roll > 0:
			p.printf("  Player %d rolled %d.\n", tr.Player, tr.Roll)
		case tr.To == engine.EndTurn:
			p.printf("  Player %d's turn is over.\n", tr.Player)
		}
	}
	if result.Outcome != nil {
		p.outcome(result.Outcome)
	}
	p.status(ctx, &result.Turn)
}

func (p *terminalPlayer) outcome(o *resolver.Outcome) {
	p.printf("  %s.\n", o.Message)
	if o.Rejected != "" {
		p.printf("  (%s)\n", o.Rejected)
	}
}

// status prints the prompt and a status bar read from the current player's economy
func (p *terminalPlayer) status(ctx context.Context, turn *engine.Snapshot) {
	p.printf("[%s] %s\n", turn.State, turn.Status.Prompt)

	ent, err := p.svc.GetEntity(ctx, p.matchID, turn.Status.PlayerID)
	if err != nil {
		return
	}
	e := ent.Economy
	p.printf("  Player %d/%d | gold %d | load %d/%d | ore %d | wool %d | allies %d\n",
		turn.PlayerIndex, turn.NumPlayers, e.Currency, e.ResourceWeight, e.MaxWeight,
		e.Holdings[economy.Ore], e.Holdings[economy.Wool], len(e.Allies))
}
