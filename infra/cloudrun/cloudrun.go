package cloudrun

import (
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/cloudrun"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/GregMSThompson/jarvis-gateway/infra/common"
	infradocker "github.com/GregMSThompson/jarvis-gateway/infra/docker"
	"github.com/GregMSThompson/jarvis-gateway/infra/secret"
)

const containerPort = 8080

type secretRefs struct {
	n8nAPIKey  pulumi.StringOutput
	groqAPIKey pulumi.StringOutput
}

// SetupCloudRun builds the gateway image, stores its API keys and deploys it.
// It returns the service URL.
func SetupCloudRun(ctx *pulumi.Context,
	prov *gcp.Provider,
	sa *serviceaccount.Account,
	store *secret.Store,
	res ...pulumi.Resource) (pulumi.StringOutput, error) {
	emptyString := pulumi.String("").ToStringOutput()

	img, err := buildGatewayImage(ctx, res...)
	if err != nil {
		return emptyString, err
	}

	sr, err := createSecrets(ctx, store)
	if err != nil {
		return emptyString, err
	}

	srv, err := enableCloudRun(ctx, prov)
	if err != nil {
		return emptyString, err
	}

	svc, err := createCloudRunService(ctx, img, sa, sr, prov, srv)
	if err != nil {
		return emptyString, err
	}

	if err := allowPublicAccess(ctx, svc, prov); err != nil {
		return emptyString, err
	}

	return svc.Statuses.ApplyT(func(st []cloudrun.ServiceStatus) string {
		if len(st) == 0 || st[0].Url == nil {
			return ""
		}
		return *st[0].Url
	}).(pulumi.StringOutput), nil
}

func buildGatewayImage(ctx *pulumi.Context, res ...pulumi.Resource) (*docker.Image, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")

	hash, err := common.SourceHash("..")
	if err != nil {
		return nil, err
	}

	return docker.NewImage(ctx, "gatewayImage", &docker.ImageArgs{
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(".."),
			Dockerfile: pulumi.String("../cmd/api/Dockerfile"),
		},
		ImageName: pulumi.String(fmt.Sprintf("%s-docker.pkg.dev/%s/%s/jarvis-gateway:%s",
			region, projectID, infradocker.RepositoryID, hash)),
	},
		pulumi.DependsOn(res),
	)
}

func enableCloudRun(ctx *pulumi.Context, prov *gcp.Provider) (*projects.Service, error) {
	return projects.NewService(ctx, "cloudRunService", &projects.ServiceArgs{
		Service: pulumi.String("run.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
}

func env(name string, value pulumi.StringInput) *cloudrun.ServiceTemplateSpecContainerEnvArgs {
	return &cloudrun.ServiceTemplateSpecContainerEnvArgs{Name: pulumi.String(name), Value: value}
}

// secretEnv passes an sm:// reference; the gateway resolves it itself.
func secretEnv(name string, secretID pulumi.StringOutput) *cloudrun.ServiceTemplateSpecContainerEnvArgs {
	return env(name, secretID.ApplyT(func(id string) string {
		return "sm://" + id
	}).(pulumi.StringOutput))
}

func createCloudRunService(ctx *pulumi.Context,
	img *docker.Image,
	sa *serviceaccount.Account,
	sr *secretRefs,
	prov *gcp.Provider,
	res ...pulumi.Resource) (*cloudrun.Service, error) {
	gcpCfg := config.New(ctx, "gcp")
	crCfg := config.New(ctx, "cloudrun")
	jCfg := config.New(ctx, "jarvis")

	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")
	minScale := crCfg.Require("minScale")
	maxScale := crCfg.Require("maxScale")
	cpu := crCfg.Require("cpu")
	memory := crCfg.Require("memory")
	concurrency := crCfg.Require("concurrency")
	logLevel := crCfg.Require("logLevel")
	timeout, _ := strconv.Atoi(crCfg.Require("timeout"))

	ttsProvider := jCfg.Get("ttsProvider")
	if ttsProvider == "" {
		ttsProvider = "edge"
	}

	return cloudrun.NewService(ctx, "gatewayService", &cloudrun.ServiceArgs{
		Location: pulumi.String(region),

		Template: &cloudrun.ServiceTemplateArgs{
			Metadata: &cloudrun.ServiceTemplateMetadataArgs{
				Annotations: pulumi.StringMap{
					"autoscaling.knative.dev/minScale": pulumi.String(minScale),
					"autoscaling.knative.dev/maxScale": pulumi.String(maxScale),

					"run.googleapis.com/cpu":    pulumi.String(cpu),
					"run.googleapis.com/memory": pulumi.String(memory),

					// websocket clients reconnect to the same instance
					"run.googleapis.com/sessionAffinity": pulumi.String("true"),

					"run.googleapis.com/container-concurrency": pulumi.String(concurrency),
				},
			},

			Spec: &cloudrun.ServiceTemplateSpecArgs{
				ServiceAccountName: sa.Email,
				TimeoutSeconds:     pulumi.Int(timeout),

				Containers: cloudrun.ServiceTemplateSpecContainerArray{
					&cloudrun.ServiceTemplateSpecContainerArgs{
						Image: img.ImageName,
						Ports: cloudrun.ServiceTemplateSpecContainerPortArray{
							&cloudrun.ServiceTemplateSpecContainerPortArgs{
								ContainerPort: pulumi.Int(containerPort),
							},
						},
						Envs: cloudrun.ServiceTemplateSpecContainerEnvArray{
							env("PROJECTID", pulumi.String(projectID)),
							env("LOGLEVEL", pulumi.String(logLevel)),
							env("LOGFORMAT", pulumi.String("json")),
							env("N8N_WEBHOOK_URL", pulumi.String(jCfg.Require("n8nWebhookUrl"))),
							env("N8N_API_URL", pulumi.String(jCfg.Require("n8nApiUrl"))),
							env("FRONTEND_URL", pulumi.String(jCfg.Require("frontendUrl"))),
							env("TTS_PROVIDER", pulumi.String(ttsProvider)),
							env("KOKORO_URL", pulumi.String(jCfg.Get("kokoroUrl"))),
							secretEnv("N8N_API_KEY", sr.n8nAPIKey),
							secretEnv("GROQ_API_KEY", sr.groqAPIKey),
						},
					},
				},
			},
		},
	},
		pulumi.Provider(prov),
		pulumi.DependsOn(res),
	)
}

// allowPublicAccess opens the service to anonymous callers; the gateway has
// no authentication of its own.
func allowPublicAccess(ctx *pulumi.Context, svc *cloudrun.Service, prov *gcp.Provider) error {
	gcpCfg := config.New(ctx, "gcp")
	region := gcpCfg.Require("region")

	_, err := cloudrun.NewIamMember(ctx, "allowUnauthenticated", &cloudrun.IamMemberArgs{
		Service:  svc.Name,
		Location: pulumi.String(region),
		Role:     pulumi.String("roles/run.invoker"),
		Member:   pulumi.String("allUsers"),
	},
		pulumi.Provider(prov),
	)
	return err
}

func createSecrets(ctx *pulumi.Context, store *secret.Store) (*secretRefs, error) {
	var err error
	sr := new(secretRefs)

	jCfg := config.New(ctx, "jarvis")

	sr.n8nAPIKey, err = store.Add(ctx, "n8nApiKeySecret", "jarvis-n8n-api-key", jCfg.RequireSecret("n8nApiKey"))
	if err != nil {
		return nil, err
	}

	sr.groqAPIKey, err = store.Add(ctx, "groqApiKeySecret", "jarvis-groq-api-key", jCfg.RequireSecret("groqApiKey"))
	if err != nil {
		return nil, err
	}

	return sr, nil
}
