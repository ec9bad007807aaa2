package recipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// Rule binds a metadata key to the line pattern that holds it and the
// renderer producing its replacement. Pattern must capture the value in its
// first group.
type Rule struct {
	Key     model.MetadataKey
	Pattern *regexp.Regexp
	Render  func(value string) string
}

// KeyPattern returns the whitespace tolerant pattern of a {%set KEY = "VALUE"%} line
func KeyPattern(key model.MetadataKey) *regexp.Regexp {
	return regexp.MustCompile(`\{%-?\s*set\s+` + regexp.QuoteMeta(string(key)) + `\s*=\s*"?([^"%\s]*)"?\s*-?%\}`)
}

// SetRenderer renders a canonical {%set KEY = "VALUE"%} line
func SetRenderer(key model.MetadataKey) func(string) string {
	return func(value string) string {
		return fmt.Sprintf(`{%%set %s = "%s"%%}`, key, value)
	}
}

// DefaultRules is the rule table for version, build and git_rev
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(model.MetadataKeys))
	for _, key := range model.MetadataKeys {
		rules = append(rules, Rule{
			Key:     key,
			Pattern: KeyPattern(key),
			Render:  SetRenderer(key),
		})
	}
	return rules
}

// NewRule builds a rule from configuration strings. render must contain one
// "%s" verb for the value; an empty pattern or render falls back to the defaults.
func NewRule(key model.MetadataKey, pattern, render string) (Rule, error) {
	rule := Rule{Key: key, Pattern: KeyPattern(key), Render: SetRenderer(key)}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Rule{}, goerr.Wrap(err, "invalid metadata pattern", goerr.V("key", key), goerr.V("pattern", pattern))
		}
		if re.NumSubexp() < 1 {
			return Rule{}, goerr.New("metadata pattern must capture the value", goerr.V("key", key), goerr.V("pattern", pattern))
		}
		rule.Pattern = re
	}

	if render != "" {
		if strings.Count(render, "%s") != 1 {
			return Rule{}, goerr.New("metadata renderer must contain exactly one %s", goerr.V("key", key), goerr.V("render", render))
		}
		rule.Render = func(value string) string {
			return fmt.Sprintf(render, value)
		}
	}

	return rule, nil
}

// Accessor reads and rewrites metadata lines of a recipe file
type Accessor struct {
	rules map[model.MetadataKey]Rule
}

var _ interfaces.MetadataStore = (*Accessor)(nil)

// NewAccessor creates an accessor; rules for the same key override earlier ones
func NewAccessor(rules ...Rule) *Accessor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	a := &Accessor{rules: make(map[model.MetadataKey]Rule, len(rules))}
	for _, r := range rules {
		a.rules[r.Key] = r
	}
	return a
}

// Read returns the value of every key. A key whose pattern matches nowhere
// means the recipe is malformed.
func (a *Accessor) Read(path string, keys []model.MetadataKey) (model.FeedstockMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read recipe file",
			goerr.V("path", path),
			goerr.T(types.ErrTagPrecondition),
		)
	}
	content := string(raw)

	md := make(model.FeedstockMetadata, len(keys))
	for _, key := range keys {
		rule, ok := a.rules[key]
		if !ok {
			return nil, goerr.New("no pattern for metadata key", goerr.V("key", key))
		}

		m := rule.Pattern.FindStringSubmatch(content)
		if m == nil {
			return nil, goerr.New("metadata key not found in recipe",
				goerr.V("key", key),
				goerr.V("path", path),
				goerr.T(types.ErrTagPrecondition),
			)
		}
		md[key] = m[1]
	}

	return md, nil
}

// Write applies subs in order, each replacing the first match of its key's
// pattern. Keys that do not appear in the file are skipped. The new content is
// built in memory and swapped in with a single rename.
func (a *Accessor) Write(ctx context.Context, path string, subs []model.Substitution) error {
	logger := ctxlog.From(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read recipe file", goerr.V("path", path))
	}
	content := string(raw)

	for _, sub := range subs {
		rule, ok := a.rules[sub.Key]
		if !ok {
			return goerr.New("no pattern for metadata key", goerr.V("key", sub.Key))
		}

		loc := rule.Pattern.FindStringIndex(content)
		if loc == nil {
			logger.Warn("Metadata key not present in recipe, not written",
				"key", sub.Key,
				"path", path,
			)
			continue
		}

		content = content[:loc[0]] + rule.Render(sub.Value) + content[loc[1]:]
		logger.Debug("Rewrote metadata line", "key", sub.Key, "value", sub.Value)
	}

	return writeFileAtomic(path, []byte(content))
}

func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return goerr.Wrap(err, "failed to stat file", goerr.V("path", path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("path", path))
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op once renamed
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write temporary file", goerr.V("path", tmpName))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", tmpName))
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return goerr.Wrap(err, "failed to set file mode", goerr.V("path", tmpName))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
	}

	return nil
}
