package service

import "github.com/wricardo/gsp-board/game/engine"

// pathDisplay shows path options by pushing them to the match's clients
type pathDisplay struct {
	matchID  string
	notifier Notifier
}

func (d pathDisplay) Present(travelDistance int) {
	if d.notifier == nil {
		return
	}
	d.notifier.BroadcastEvent(d.matchID, EventPathOptions, PathOptions{TravelDistance: travelDistance})
}

// DisplayFor returns a PathDisplay factory that reports through n. A nil n discards.
func DisplayFor(n Notifier) func(matchID string) engine.PathDisplay {
	return func(matchID string) engine.PathDisplay {
		return pathDisplay{matchID: matchID, notifier: n}
	}
}
