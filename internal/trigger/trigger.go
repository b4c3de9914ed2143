// Package trigger starts the scraper task on ECS Fargate.
package trigger

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/sirupsen/logrus"

	"etfkpis/internal/config"
)

// ECSAPI is the part of the ECS client the trigger uses
type ECSAPI interface {
	DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// Event is the invocation payload, e.g. {"env": "dev"}
type Event struct {
	Env string `json:"env,omitempty"`
}

// Result lists the started tasks
type Result struct {
	TaskARNs []string `json:"taskArns"`
}

// Trigger runs one scraper task per invocation
type Trigger struct {
	client ECSAPI
	cfg    config.TriggerConfig
	log    logrus.FieldLogger
}

// New creates a new Trigger
func New(client ECSAPI, cfg config.TriggerConfig, log logrus.FieldLogger) *Trigger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Trigger{client: client, cfg: cfg, log: log}
}

// Handle starts the latest revision of the task definition with ENV set to the
// event's env, or the configured one when the event has none.
func (t *Trigger) Handle(ctx context.Context, event Event) (*Result, error) {
	result, err := t.run(ctx, event)
	if err != nil {
		t.log.WithError(err).Error("failed to start the task")
		return nil, err
	}
	return result, nil
}

func (t *Trigger) run(ctx context.Context, event Event) (*Result, error) {
	env := t.cfg.Env
	if event.Env != "" {
		env = event.Env
	}

	def, err := t.client.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(t.cfg.TaskDefinition),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe task definition %s: %w", t.cfg.TaskDefinition, err)
	}
	if def.TaskDefinition == nil {
		return nil, fmt.Errorf("task definition %s not found", t.cfg.TaskDefinition)
	}
	taskDef := fmt.Sprintf("%s:%d", t.cfg.TaskDefinition, def.TaskDefinition.Revision)

	var subnets []string
	for _, s := range []string{t.cfg.Subnet1, t.cfg.Subnet2} {
		if s != "" {
			subnets = append(subnets, s)
		}
	}
	var securityGroups []string
	if t.cfg.SecurityGroup != "" {
		securityGroups = []string{t.cfg.SecurityGroup}
	}

	out, err := t.client.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(t.cfg.ClusterName),
		LaunchType:     types.LaunchTypeFargate,
		Count:          aws.Int32(1),
		TaskDefinition: aws.String(taskDef),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        subnets,
				SecurityGroups: securityGroups,
				AssignPublicIp: types.AssignPublicIp(strings.ToUpper(t.cfg.AssignPublicIP)),
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{{
				Name: aws.String(t.cfg.ContainerName),
				Environment: []types.KeyValuePair{{
					Name:  aws.String("ENV"),
					Value: aws.String(env),
				}},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run task %s: %w", taskDef, err)
	}

	result := &Result{}
	for _, task := range out.Tasks {
		result.TaskARNs = append(result.TaskARNs, aws.ToString(task.TaskArn))
	}
	if len(result.TaskARNs) == 0 && len(out.Failures) > 0 {
		f := out.Failures[0]
		return nil, fmt.Errorf("task %s was not started: %s %s", taskDef, aws.ToString(f.Reason), aws.ToString(f.Detail))
	}

	t.log.WithFields(logrus.Fields{
		"task_definition": taskDef,
		"env":             env,
		"task_arns":       result.TaskARNs,
	}).Info("task started")

	return result, nil
}
