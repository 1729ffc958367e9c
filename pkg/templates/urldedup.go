package templates

import (
	"context"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

var domains = []string{
	"google.com",
	"facebook.com",
	"twitter.com",
	"github.com",
	"stackoverflow.com",
	"reddit.com",
	"youtube.com",
	"linkedin.com",
	"amazon.com",
	"wikipedia.org",
}

var paths = []string{
	"",
	"/home",
	"/about",
	"/contact",
	"/products",
	"/api/v1",
	"/api/v2",
	"/docs",
	"/blog",
	"/search",
	"/user/profile",
	"/settings",
	"/help",
}

var params = []string{
	"",
	"?page=1",
	"?id=123",
	"?ref=homepage",
	"?utm_source=test",
	"?sort=desc",
}

// URLRecord is one generated URL.
type URLRecord struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// URLDedup generates URLs with heavy repetition for deduplication workloads.
// The path and query draws come from the ChaCha8 generator.
type URLDedup struct {
	itemSaver

	domains []string
	state   *randstate.State
	faults  faults
}

// NewURLDedup builds the urldedup template. location optionally names a file of
// domains, one per line.
func NewURLDedup(location string, cfg map[string]any, state *randstate.State) (synthgen.Producer, error) {
	vocab, err := loadVocabulary(location, domains)
	if err != nil {
		return nil, err
	}
	f, err := newFaults(cfg)
	if err != nil {
		return nil, err
	}
	saver, err := newItemSaver("urldedup", cfg)
	if err != nil {
		return nil, err
	}

	return &URLDedup{
		itemSaver: saver,
		domains:   vocab,
		state:     state,
		faults:    f,
	}, nil
}

func (g *URLDedup) Generate(ctx context.Context) (any, error) {
	domain := pick(g.state.Rand(), g.domains)
	path := pick(g.state.ChaCha(), paths)
	param := pick(g.state.ChaCha(), params)

	if err := g.faults.check(); err != nil {
		return nil, err
	}
	return URLRecord{URL: "https://" + domain + path + param, Domain: domain}, nil
}

func (g *URLDedup) Description() string {
	return "URLs for deduplication: https://domain.com/path?params"
}
