package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/llm"
	"github.com/sells-group/arrest-news-cli/internal/model"
)

// ServiceError is a model call that failed after retries. The hit it
// belongs to is dropped and counted.
type ServiceError struct {
	Question int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("classification service error on question %d: %v", e.Question+1, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Verdict is the outcome of the question battery.
type Verdict struct {
	Valid       bool
	Explanation string
	// Asked is the number of questions actually sent.
	Asked int
}

// Classifier runs the question battery against article text.
type Classifier struct {
	asker     llm.Asker
	questions []string
}

// NewClassifier creates a classifier. A nil or empty battery uses
// DefaultQuestions.
func NewClassifier(asker llm.Asker, questions []string) *Classifier {
	if len(questions) == 0 {
		questions = DefaultQuestions
	}
	return &Classifier{asker: asker, questions: questions}
}

// Classify asks each question in order and stops at the first negative
// answer. The explanation is the last answer received.
func (c *Classifier) Classify(ctx context.Context, text string, rec model.InputRecord, w model.Window) (Verdict, error) {
	var v Verdict
	for i, tmpl := range c.questions {
		answer, err := c.asker.Ask(ctx, text, Render(tmpl, rec, w))
		if err != nil {
			if ctx.Err() != nil {
				return Verdict{}, ctx.Err()
			}
			return Verdict{}, &ServiceError{Question: i, Err: err}
		}
		v.Asked = i + 1
		v.Explanation = answer
		if IsNegative(answer) {
			zap.L().Debug("classify: negative answer",
				zap.String("location", rec.Location()),
				zap.Int("question", i+1),
			)
			return v, nil
		}
	}
	v.Valid = true
	return v, nil
}

var negativePrefixes = []string{"no.", "no,", "no ", "no*", "no:", "no!", "no;"}

// IsNegative reports whether an answer opens with a "no". Leading markdown
// emphasis, heading marks, quotes and whitespace are ignored.
func IsNegative(answer string) bool {
	a := strings.ToLower(strings.TrimLeft(answer, " \t\r\n*#_>\"'`"))
	if a == "no" {
		return true
	}
	for _, p := range negativePrefixes {
		if strings.HasPrefix(a, p) {
			return true
		}
	}
	return strings.HasPrefix(a, "no\n")
}
