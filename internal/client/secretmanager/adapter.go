package secretmanagerclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
)

type versionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Adapter reads secret payloads for config values that point at Secret
// Manager instead of holding the secret.
type Adapter struct {
	client    versionAccessor
	closer    func() error
	projectID string
	log       *slog.Logger
}

func NewAdapter(ctx context.Context, log *slog.Logger, projectID string) (*Adapter, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client:    client,
		closer:    client.Close,
		projectID: projectID,
		log:       log,
	}, nil
}

func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	if err != nil && a.log != nil {
		a.log.Error("secret manager adapter close failed", "error", err)
	}
	return err
}

// Access returns the payload of ref, which may be a full version name, a
// secret name (latest version) or a bare secret id in the adapter's project.
func (a *Adapter) Access(ctx context.Context, ref string) (string, error) {
	name, err := versionName(a.projectID, ref)
	if err != nil {
		return "", err
	}

	res, err := a.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if status.Code(err) == codes.NotFound {
		return "", errs.NewNotFoundError("secret not found: " + name)
	}
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", name, err)
	}
	return strings.TrimSpace(string(res.GetPayload().GetData())), nil
}

func versionName(projectID, ref string) (string, error) {
	ref = strings.Trim(ref, "/")
	switch {
	case ref == "":
		return "", fmt.Errorf("empty secret reference")
	case strings.HasPrefix(ref, "projects/") && strings.Contains(ref, "/versions/"):
		return ref, nil
	case strings.HasPrefix(ref, "projects/"):
		return ref + "/versions/latest", nil
	case strings.Contains(ref, "/"):
		return "", fmt.Errorf("malformed secret reference %q", ref)
	case projectID == "":
		return "", fmt.Errorf("secret %q needs a project id", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, ref), nil
}
