package identity

import (
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// CreateGatewayAccount is the identity the gateway runs as. It is granted
// nothing here; each package that needs access adds its own binding.
func CreateGatewayAccount(ctx *pulumi.Context, prov *gcp.Provider) (*serviceaccount.Account, error) {
	return serviceaccount.NewAccount(ctx, "gatewayServiceAccount", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String("jarvis-gateway"),
		DisplayName: pulumi.String("JARVIS Gateway"),
	},
		pulumi.Provider(prov),
	)
}
