package question

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type document struct {
	Questions []Question `koanf:"questions"`
}

// LoadFile reads a YAML question pool of the form:
//
//	questions:
//	  - id: lp-1
//	    topic: liquidity-pools
//	    prompt: ...
//	    kind: numeric
//	    answer: "1000"
//	    tolerance: 0.5
func LoadFile(path string) ([]Question, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadQuestions, err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadQuestions, err)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s has no questions", ErrLoadQuestions, path)
	}

	seen := make(map[string]struct{}, len(doc.Questions))
	for _, q := range doc.Questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return doc.Questions, nil
}
