package templates

import (
	"context"
	"fmt"
	"strconv"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

var actions = []string{
	"login",
	"logout",
	"viewed product",
	"added to cart",
	"removed from cart",
	"purchased",
	"reviewed product",
	"updated profile",
	"changed password",
	"subscribed to newsletter",
}

const userPrefix = "user_"

// ActionEvent is one "{user_id} did {action}" log entry.
type ActionEvent struct {
	User   string `json:"user"`
	Action string `json:"action"`
	Line   string `json:"line"`
}

// ActionCount generates user action logs.
type ActionCount struct {
	itemSaver

	UserCount int
	actions   []string
	state     *randstate.State
	faults    faults
}

// NewActionCount builds the actioncount template. location optionally names a
// file of actions, one per line.
func NewActionCount(location string, cfg map[string]any, state *randstate.State) (synthgen.Producer, error) {
	users, err := intOption(cfg, "user_count", 100)
	if err != nil {
		return nil, err
	}
	if users < 1 {
		return nil, fmt.Errorf("%w: user_count must be >= 1, got %d", synthgen.ErrInvalidConfig, users)
	}

	vocab, err := loadVocabulary(location, actions)
	if err != nil {
		return nil, err
	}
	f, err := newFaults(cfg)
	if err != nil {
		return nil, err
	}
	saver, err := newItemSaver("actioncount", cfg)
	if err != nil {
		return nil, err
	}

	return &ActionCount{
		itemSaver: saver,
		UserCount: users,
		actions:   vocab,
		state:     state,
		faults:    f,
	}, nil
}

func (g *ActionCount) Generate(ctx context.Context) (any, error) {
	r := g.state.Rand()
	user := userPrefix + strconv.Itoa(r.IntN(g.UserCount))
	action := pick(r, g.actions)

	if err := g.faults.check(); err != nil {
		return nil, err
	}
	return ActionEvent{User: user, Action: action, Line: user + " did " + action}, nil
}

func (g *ActionCount) Description() string {
	return "User action logs: {user_id} did {action}"
}
