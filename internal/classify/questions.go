package classify

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

const answerFormat = " Explicitly say yes or no in the first word of your response along with your explanation."

// DefaultQuestions is the question battery asked about every article, in
// order. Placeholders: {location}, {state}, {start}, {end}.
var DefaultQuestions = []string{
	"Does this text mention {location} or {state}?" + answerFormat,
	"Is the text related to immigration raids/arrests?" + answerFormat,
	"Does this text mention the date and is the date of this immigration raid between {start} and {end}?" + answerFormat,
	"Does this text confirm that the raid was conducted by Immigration and Customs Enforcement?" + answerFormat,
}

type questionsFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions reads a question battery from a YAML file of the form
// `questions: [...]`. An empty path returns DefaultQuestions.
func LoadQuestions(path string) ([]string, error) {
	if path == "" {
		return DefaultQuestions, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read questions %s", path)
	}
	var f questionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "classify: parse questions %s", path)
	}
	var out []string
	for _, q := range f.Questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("classify: %s has no questions", path)
	}
	return out, nil
}

// Render fills a question template for one record and window.
func Render(tmpl string, rec model.InputRecord, w model.Window) string {
	return strings.NewReplacer(
		"{location}", rec.Location(),
		"{state}", rec.StateCode,
		"{start}", w.StartParam(),
		"{end}", w.EndParam(),
	).Replace(tmpl)
}
