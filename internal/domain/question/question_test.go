package question_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestCheck(t *testing.T) {
	Convey("Given an exact question", t, func() {
		q := question.Question{ID: "q1", Prompt: "p", Answer: "Impermanent loss"}

		Convey("Then answers compare trimmed and case-insensitively", func() {
			So(q.Check("  impermanent LOSS ", decimal.Zero), ShouldBeTrue)
			So(q.Check("slippage", decimal.Zero), ShouldBeFalse)
			So(q.Check("", decimal.Zero), ShouldBeFalse)
		})
	})

	Convey("Given a numeric question", t, func() {
		q := question.Question{ID: "q2", Prompt: "p", Kind: question.KindNumeric, Answer: "1000"}

		Convey("When it has no own tolerance", func() {
			Convey("Then the fallback tolerance applies", func() {
				So(q.Check("1000", decimal.Zero), ShouldBeTrue)
				So(q.Check("1000.00", decimal.Zero), ShouldBeTrue)
				So(q.Check("1000.4", decimal.RequireFromString("0.5")), ShouldBeTrue)
				So(q.Check("1000.6", decimal.RequireFromString("0.5")), ShouldBeFalse)
				So(q.Check("one thousand", decimal.RequireFromString("0.5")), ShouldBeFalse)
			})
		})

		Convey("When it carries a tolerance", func() {
			q.Tolerance = 2

			Convey("Then it overrides the fallback", func() {
				So(q.Check("998", decimal.Zero), ShouldBeTrue)
				So(q.Check("1002.01", decimal.Zero), ShouldBeFalse)
			})
		})
	})

	Convey("Given a question with choices", t, func() {
		q := question.Question{ID: "q3", Topic: "intro", Prompt: "p", Choices: []string{"a", "b"}, Answer: "a"}

		Convey("Then the public view hides the answer and copies the choices", func() {
			v := q.Public()
			So(v.ID, ShouldEqual, "q3")
			So(v.Kind, ShouldEqual, "exact")
			v.Choices[0] = "mutated"
			So(q.Choices[0], ShouldEqual, "a")
		})
	})
}

func TestInMemoryBank(t *testing.T) {
	ctx := context.Background()

	Convey("Given the built-in pool", t, func() {
		bank := question.NewInMemoryBank(question.WithSetSize(3), question.WithSeed(7))

		Convey("When asking for a known topic", func() {
			set, ok := bank.QuestionSet(ctx, "staking")

			Convey("Then only that topic is served, capped at the set size", func() {
				So(ok, ShouldBeTrue)
				So(len(set), ShouldEqual, 3)
				for _, q := range set {
					So(q.Topic, ShouldEqual, "staking")
				}
			})
		})

		Convey("When asking for any topic", func() {
			set, ok := bank.QuestionSet(ctx, "")

			Convey("Then a full set is returned", func() {
				So(ok, ShouldBeTrue)
				So(len(set), ShouldEqual, 3)
			})
		})

		Convey("When asking for an unknown topic", func() {
			set, ok := bank.QuestionSet(ctx, "derivatives")

			Convey("Then none is available", func() {
				So(ok, ShouldBeFalse)
				So(set, ShouldBeNil)
			})
		})

		Convey("When a returned set is mutated", func() {
			set, _ := bank.QuestionSet(ctx, "intro")
			for i := range set {
				set[i].Answer = "tampered"
			}
			again, _ := bank.QuestionSet(ctx, "intro")

			Convey("Then the pool is unaffected", func() {
				for _, q := range again {
					So(q.Answer, ShouldNotEqual, "tampered")
				}
			})
		})
	})

	Convey("Given two banks with the same seed", t, func() {
		a := question.NewInMemoryBank(question.WithSeed(99))
		b := question.NewInMemoryBank(question.WithSeed(99))

		Convey("Then they produce the same order", func() {
			sa, _ := a.QuestionSet(ctx, "any")
			sb, _ := b.QuestionSet(ctx, "any")
			So(len(sa), ShouldEqual, len(sb))
			for i := range sa {
				So(sa[i].ID, ShouldEqual, sb[i].ID)
			}
		})
	})

	Convey("Given an empty pool", t, func() {
		bank := question.NewInMemoryBank(question.WithPool(nil))

		Convey("Then no set is available", func() {
			_, ok := bank.QuestionSet(ctx, "")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a YAML question pool", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "questions.yaml")
		content := `questions:
  - id: q1
    topic: staking
    prompt: "Reward on 100 at 5%?"
    kind: numeric
    answer: 5
    tolerance: 0.1
  - id: q2
    topic: intro
    prompt: "Stablecoin symbol?"
    choices: ["vETH", "vUSDC"]
    answer: vUSDC
`
		So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)

		Convey("When it is loaded", func() {
			qs, err := question.LoadFile(path)

			Convey("Then every question is decoded", func() {
				So(err, ShouldBeNil)
				So(len(qs), ShouldEqual, 2)
				So(qs[0].Kind, ShouldEqual, question.KindNumeric)
				So(qs[0].Answer, ShouldEqual, "5")
				So(qs[0].Tolerance, ShouldEqual, 0.1)
				So(qs[1].Choices, ShouldResemble, []string{"vETH", "vUSDC"})
			})
		})
	})

	Convey("Given a pool with an invalid question", t, func() {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		content := `questions:
  - id: q1
    prompt: "?"
    kind: numeric
    answer: many
`
		So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)

		Convey("Then loading fails validation", func() {
			_, err := question.LoadFile(path)
			So(errors.Is(err, question.ErrInvalidQuestion), ShouldBeTrue)
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := question.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))

		Convey("Then loading fails", func() {
			So(errors.Is(err, question.ErrLoadQuestions), ShouldBeTrue)
		})
	})
}
