package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/jarvis-gateway/infra/cloudrun"
	"github.com/GregMSThompson/jarvis-gateway/infra/docker"
	"github.com/GregMSThompson/jarvis-gateway/infra/identity"
	"github.com/GregMSThompson/jarvis-gateway/infra/provider"
	"github.com/GregMSThompson/jarvis-gateway/infra/secret"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		// set default provider with the correct project
		prov, err := provider.SetupDefaultProvider(ctx)
		if err != nil {
			return err
		}

		repo, err := docker.CreateGatewayRepo(ctx, prov)
		if err != nil {
			return err
		}

		sa, err := identity.CreateGatewayAccount(ctx, prov)
		if err != nil {
			return err
		}

		// the gateway resolves sm:// config values at startup
		store, err := secret.SetupSecretManager(ctx, prov, sa)
		if err != nil {
			return err
		}

		url, err := cloudrun.SetupCloudRun(ctx, prov, sa, store, repo)
		if err != nil {
			return err
		}

		ctx.Export("gatewayUrl", url)
		return nil
	})
}
