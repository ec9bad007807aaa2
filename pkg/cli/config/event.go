package config

import (
	"context"

	"github.com/m-mizutani/herder/pkg/controller/event"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Event holds where the triggering event is read from
type Event struct {
	env       event.Env
	TestEvent string
}

// Flags returns CLI flags for the event source. They default to the
// variables GitHub Actions exports.
func (c *Event) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "event-name",
			Usage:       "Event name (push, schedule, repository_dispatch)",
			Destination: &c.env.EventName,
			Sources:     cli.EnvVars("HERDER_EVENT_NAME", "GITHUB_EVENT_NAME"),
		},
		&cli.StringFlag{
			Name:        "event-path",
			Usage:       "Path of the event payload JSON",
			Destination: &c.env.EventPath,
			Sources:     cli.EnvVars("HERDER_EVENT_PATH", "GITHUB_EVENT_PATH"),
		},
		&cli.StringFlag{
			Name:        "ref-type",
			Usage:       "Ref type of the event (branch or tag)",
			Destination: &c.env.RefType,
			Sources:     cli.EnvVars("HERDER_REF_TYPE", "GITHUB_REF_TYPE"),
		},
		&cli.StringFlag{
			Name:        "ref-name",
			Usage:       "Ref name of the event",
			Destination: &c.env.RefName,
			Sources:     cli.EnvVars("HERDER_REF_NAME", "GITHUB_REF_NAME"),
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Repository as owner/name",
			Destination: &c.env.Repository,
			Sources:     cli.EnvVars("HERDER_REPOSITORY", "GITHUB_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "sha",
			Usage:       "Commit sha of the event",
			Destination: &c.env.SHA,
			Sources:     cli.EnvVars("HERDER_SHA", "GITHUB_SHA"),
		},
		&cli.StringFlag{
			Name:        "actor",
			Usage:       "User that triggered the event",
			Destination: &c.env.Actor,
			Sources:     cli.EnvVars("HERDER_ACTOR", "GITHUB_ACTOR"),
		},
		&cli.StringFlag{
			Name:        "test-event",
			Usage:       "Run in test mode with this JSON event; publishing asks for confirmation",
			Destination: &c.TestEvent,
			Sources:     cli.EnvVars("HERDER_TEST_EVENT"),
		},
	}
}

// TestMode reports whether a test event replaces the delivered one
func (c *Event) TestMode() bool {
	return c.TestEvent != ""
}

// Load returns the event that triggered this run
func (c *Event) Load(ctx context.Context) (*model.Event, error) {
	if c.TestMode() {
		return event.LoadTestEvent(c.TestEvent)
	}
	return event.Load(ctx, c.env)
}
