// Package pipeline runs multi-step prompt sequences against a single backend.
// Each step either calls the model, runs a local function, or renders a
// template file; outputs flow to later steps through the chain context.
package pipeline

import (
	"context"
	"fmt"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/logging"
	tplengine "github.com/mledur/quill/pkg/template"
)

// Chain is a named, ordered list of steps.
type Chain struct {
	Name  string
	Steps []Step
}

// Step holds one unit of work in a chain. Exactly one of Prompt, Fn, or
// TemplateFile must be set.
//   - LocalContext: step-scoped data merged over the chain context.
//   - Requires: keys that must be present before the step runs.
//   - ForwardAs: the key under which the output is stored for later steps.
type Step struct {
	Name         string
	LocalContext map[string]string
	ForwardAs    string
	Requires     []string
	Prompt       *ai.Prompt
	Fn           func(data map[string]string) (string, error)
	TemplateFile string
}

// ChainContext carries data produced and consumed by steps.
type ChainContext struct {
	Data map[string]string
}

// NewChainContext returns a new context with optional initial data.
func NewChainContext(initial map[string]string) *ChainContext {
	if initial == nil {
		initial = make(map[string]string)
	}
	return &ChainContext{Data: initial}
}

func (c *Chain) validateStepAction(step *Step) error {
	nonNilCount := 0
	if step.Prompt != nil {
		nonNilCount++
	}
	if step.Fn != nil {
		nonNilCount++
	}
	if step.TemplateFile != "" {
		nonNilCount++
	}
	if nonNilCount != 1 {
		return fmt.Errorf("step %s must have exactly one of prompt, fn or template file", step.Name)
	}
	return nil
}

// Run executes every step in order, stopping at the first failure.
func (c *Chain) Run(ctx context.Context, gen ai.Gen, chainCtx *ChainContext) error {
	logger := logging.NewComponentLogger("pipeline")
	logger.Info("chain execution started", "chain", c.Name, "steps", len(c.Steps))
	totalSteps := len(c.Steps)

	for stepCount, step := range c.Steps {
		logger.Info("step executing", "step", stepCount+1, "total", totalSteps, "name", step.Name)

		allData := make(map[string]string)
		for k, v := range chainCtx.Data {
			allData[k] = v
		}
		for k, v := range step.LocalContext {
			allData[k] = v
		}

		for _, requiredKey := range step.Requires {
			if _, ok := allData[requiredKey]; !ok {
				return fmt.Errorf("step %s requires key %s which is not present in the context", step.Name, requiredKey)
			}
		}

		if err := c.validateStepAction(&step); err != nil {
			return err
		}

		var output string
		var err error

		switch {
		case step.Prompt != nil:
			output, err = gen.GenerateContent(ctx, *step.Prompt, ai.MapToAttr(allData)...)
		case step.Fn != nil:
			output, err = step.Fn(allData)
		default:
			output, err = c.renderFile(step.TemplateFile, allData)
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}

		if step.ForwardAs != "" {
			chainCtx.Data[step.ForwardAs] = output
		}
	}

	logger.Info("chain execution completed", "chain", c.Name)
	return nil
}

func (c *Chain) renderFile(fileName string, data map[string]string) (string, error) {
	engine := tplengine.NewEngine()
	return engine.RenderFile(fileName, data)
}

// Join appends the steps of other chains to this one, preserving its Name.
func (c *Chain) Join(others ...*Chain) *Chain {
	for _, other := range others {
		c.Steps = append(c.Steps, other.Steps...)
	}
	return c
}
