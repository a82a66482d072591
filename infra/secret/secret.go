package secret

import (
	"fmt"

	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/secretmanager"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Store creates secrets the gateway can read at startup.
type Store struct {
	prov    *gcp.Provider
	service *projects.Service
	reader  *serviceaccount.Account
}

func SetupSecretManager(ctx *pulumi.Context, prov *gcp.Provider, reader *serviceaccount.Account) (*Store, error) {
	svc, err := projects.NewService(ctx, "secretManagerService", &projects.ServiceArgs{
		Service: pulumi.String("secretmanager.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}
	return &Store{prov: prov, service: svc, reader: reader}, nil
}

// Add stores value under secretID and lets the reader account access it.
// It returns the secret id for use in an sm:// reference.
func (s *Store) Add(ctx *pulumi.Context, resourceName, secretID string, value pulumi.StringInput) (pulumi.StringOutput, error) {
	emptyString := pulumi.String("").ToStringOutput()

	sec, err := secretmanager.NewSecret(ctx, resourceName, &secretmanager.SecretArgs{
		SecretId: pulumi.String(secretID),
		Replication: &secretmanager.SecretReplicationArgs{
			Auto: &secretmanager.SecretReplicationAutoArgs{},
		},
	},
		pulumi.Provider(s.prov),
		pulumi.DependsOn([]pulumi.Resource{s.service}),
	)
	if err != nil {
		return emptyString, err
	}

	_, err = secretmanager.NewSecretVersion(ctx, resourceName+"Version", &secretmanager.SecretVersionArgs{
		Secret:     sec.ID(),
		SecretData: value,
	},
		pulumi.Provider(s.prov),
	)
	if err != nil {
		return emptyString, err
	}

	_, err = secretmanager.NewSecretIamMember(ctx, resourceName+"Accessor", &secretmanager.SecretIamMemberArgs{
		SecretId: sec.SecretId,
		Role:     pulumi.String("roles/secretmanager.secretAccessor"),
		Member: s.reader.Email.ApplyT(func(email string) string {
			return fmt.Sprintf("serviceAccount:%s", email)
		}).(pulumi.StringOutput),
	},
		pulumi.Provider(s.prov),
	)
	if err != nil {
		return emptyString, err
	}

	return sec.SecretId, nil
}
