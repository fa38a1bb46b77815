package world

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/wanmail/world/cssxpath"
)

// outcome is the result of trying one selector dialect.
type outcome int

const (
	matched outcome = iota
	invalidSyntax
	failed
)

type lookup struct {
	outcome  outcome
	elements []Element
	err      error
}

// dialect interprets a selector one way and looks it up.
type dialect struct {
	name   string
	lookup func(ctx context.Context, d Driver, parent Element, selector string) lookup
}

// dialects are tried in order until one can parse the selector.
var dialects = []dialect{
	{"css", func(ctx context.Context, d Driver, parent Element, selector string) lookup {
		return classify(d.FindElements(ctx, parent, ByCSS, selector))
	}},
	{"pseudo-css", func(ctx context.Context, d Driver, parent Element, selector string) lookup {
		translate := cssxpath.Translate
		if parent != nil {
			translate = cssxpath.TranslateRelative
		}
		xpath, err := translate(selector)
		if err != nil {
			return lookup{outcome: invalidSyntax}
		}
		return classify(d.FindElements(ctx, parent, ByXPath, xpath))
	}},
	{"xpath", func(ctx context.Context, d Driver, parent Element, selector string) lookup {
		return classify(d.FindElements(ctx, parent, ByXPath, selector))
	}},
}

func classify(elems []Element, err error) lookup {
	switch {
	case err == nil:
		if elems == nil {
			elems = []Element{}
		}
		return lookup{outcome: matched, elements: elems}
	case errors.Is(err, ErrInvalidSelector):
		return lookup{outcome: invalidSyntax, err: err}
	}
	return lookup{outcome: failed, err: err}
}

func findElements(ctx context.Context, d Driver, parent Element, selector string, strict bool) ([]Element, error) {
	for _, dl := range dialects {
		res := dl.lookup(ctx, d, parent, selector)
		switch res.outcome {
		case matched:
			glog.V(2).Infof("world: %q matched %d elements as %s", selector, len(res.elements), dl.name)
			return res.elements, nil
		case failed:
			return nil, res.err
		}
	}
	glog.V(1).Infof("world: %q is not a valid CSS, pseudo-CSS or XPath selector", selector)
	if strict {
		return nil, &InvalidSelectorError{Selector: selector}
	}
	return []Element{}, nil
}
