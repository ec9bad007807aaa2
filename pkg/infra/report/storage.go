package report

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"google.golang.org/api/option"
)

// Storage writes run reports as JSON objects to a Cloud Storage bucket
type Storage struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ReportStore = (*Storage)(nil)

// NewStorage creates a report store for bucket. Objects are written under
// prefix/<repository>/<run id>.json.
func NewStorage(ctx context.Context, bucket, prefix, credentialsFile string) (*Storage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}

	return &Storage{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the underlying client
func (x *Storage) Close() error {
	return x.client.Close()
}

// ObjectName returns where report is stored inside the bucket
func ObjectName(prefix string, report *model.RunReport) string {
	return path.Join(prefix, report.Event.Repository.String(), report.ID.String()+".json")
}

// Put implements interfaces.ReportStore
func (x *Storage) Put(ctx context.Context, report *model.RunReport) error {
	name := ObjectName(x.prefix, report)

	w := x.client.Bucket(x.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(report); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode run report", goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload run report",
			goerr.V("bucket", x.bucket),
			goerr.V("object", name),
		)
	}
	return nil
}
