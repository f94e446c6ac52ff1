package discovery

import (
	"fmt"
	"os"
	"sort"
	"time"

	"hqe/internal/domain"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Parser parses suite files into test cases. Blocks are read in source order
// so that actions run in the order they are declared.
type Parser struct {
	evalCtx *hcl.EvalContext
}

// NewParser creates a new Parser. vars are exposed to attribute expressions,
// e.g. url = "${base_url}/blog".
func NewParser(vars map[string]string) *Parser {
	values := make(map[string]cty.Value, len(vars))
	for name, value := range vars {
		values[name] = cty.StringVal(value)
	}
	return &Parser{evalCtx: &hcl.EvalContext{Variables: values}}
}

type visitBlock struct {
	URL string `hcl:"url"`
}

type containsBlock struct {
	Text     string `hcl:"text"`
	Selector string `hcl:"selector,optional"`
	Timeout  string `hcl:"timeout,optional"`
}

type titleBlock struct {
	Text    string `hcl:"text"`
	Timeout string `hcl:"timeout,optional"`
}

type labelBlock struct {
	Name  string `hcl:"name"`
	Value string `hcl:"value"`
}

type stepBlock struct {
	Name string `hcl:"name"`
}

type runBlock struct {
	Command string `hcl:"command"`
}

// ParseFile parses every suite declared in a suite file
func (p *Parser) ParseFile(path string) ([]domain.Suite, error) {
	body, err := p.parseBody(path)
	if err != nil {
		return nil, err
	}
	if err := noAttributes(body, path); err != nil {
		return nil, err
	}

	var suites []domain.Suite
	for _, block := range body.Blocks {
		if block.Type != "suite" {
			return nil, fmt.Errorf("%s: unexpected block %q, only suite blocks are allowed at top level", pos(path, block), block.Type)
		}
		suite, err := p.decodeSuite(path, block)
		if err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

// ParseFiles parses all suite files and returns their test cases in
// declaration order. Test case IDs must be unique across the run.
func (p *Parser) ParseFiles(paths []string) ([]domain.TestCase, error) {
	var cases []domain.TestCase
	seen := make(map[string]bool)
	for _, path := range paths {
		suites, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		for _, suite := range suites {
			for _, tc := range suite.Cases {
				if seen[tc.ID] {
					return nil, fmt.Errorf("%s: duplicate test %q in suite %q", path, tc.Name, tc.Suite)
				}
				seen[tc.ID] = true
				cases = append(cases, tc)
			}
		}
	}
	return cases, nil
}

// FindTestCases returns the names of all test cases in a suite file
func (p *Parser) FindTestCases(path string) ([]string, error) {
	suites, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, suite := range suites {
		for _, tc := range suite.Cases {
			names = append(names, tc.FullName())
		}
	}
	return names, nil
}

// ParseSupportFile parses the support file: top-level before_each blocks and
// named command blocks.
func (p *Parser) ParseSupportFile(path string) (*domain.SupportSpec, error) {
	body, err := p.parseBody(path)
	if err != nil {
		return nil, err
	}
	if err := noAttributes(body, path); err != nil {
		return nil, err
	}

	spec := &domain.SupportSpec{Commands: make(map[string][]domain.Action)}
	for _, block := range body.Blocks {
		switch block.Type {
		case "before_each":
			actions, err := p.decodeActions(path, block.Body)
			if err != nil {
				return nil, err
			}
			spec.Setup = append(spec.Setup, actions...)
		case "command":
			if len(block.Labels) != 1 {
				return nil, fmt.Errorf("%s: command block needs exactly one name label", pos(path, block))
			}
			name := block.Labels[0]
			if _, dup := spec.Commands[name]; dup {
				return nil, fmt.Errorf("%s: duplicate command %q", pos(path, block), name)
			}
			actions, err := p.decodeActions(path, block.Body)
			if err != nil {
				return nil, err
			}
			spec.Commands[name] = actions
		default:
			return nil, fmt.Errorf("%s: unexpected block %q in support file", pos(path, block), block.Type)
		}
	}
	return spec, nil
}

func (p *Parser) parseBody(path string) (*hclsyntax.Body, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	file, diags := hclsyntax.ParseConfig(src, path, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s: unexpected body type %T", path, file.Body)
	}
	return body, nil
}

func (p *Parser) decodeSuite(path string, block *hclsyntax.Block) (domain.Suite, error) {
	if len(block.Labels) != 1 {
		return domain.Suite{}, fmt.Errorf("%s: suite block needs exactly one name label", pos(path, block))
	}
	suite := domain.Suite{Name: block.Labels[0], File: path}

	tags, err := p.decodeTags(path, block.Body)
	if err != nil {
		return domain.Suite{}, err
	}
	suite.Tags = tags

	for _, child := range block.Body.Blocks {
		switch child.Type {
		case "before_each":
			actions, err := p.decodeActions(path, child.Body)
			if err != nil {
				return domain.Suite{}, err
			}
			suite.Setup = append(suite.Setup, actions...)
		case "test":
			if len(child.Labels) != 1 {
				return domain.Suite{}, fmt.Errorf("%s: test block needs exactly one name label", pos(path, child))
			}
			caseTags, err := p.decodeTags(path, child.Body)
			if err != nil {
				return domain.Suite{}, err
			}
			body, err := p.decodeActions(path, child.Body)
			if err != nil {
				return domain.Suite{}, err
			}
			suite.Cases = append(suite.Cases, domain.TestCase{
				ID:    fmt.Sprintf("%s::%s::%s", path, suite.Name, child.Labels[0]),
				Suite: suite.Name,
				Name:  child.Labels[0],
				File:  path,
				Tags:  mergeTags(suite.Tags, caseTags),
				Body:  body,
			})
		default:
			return domain.Suite{}, fmt.Errorf("%s: unexpected block %q in suite %q", pos(path, child), child.Type, suite.Name)
		}
	}

	// before_each applies to every test in the suite, wherever it is declared
	for i := range suite.Cases {
		suite.Cases[i].Setup = append([]domain.Action(nil), suite.Setup...)
	}
	return suite, nil
}

// decodeTags reads the optional tags attribute; any other attribute is an error.
func (p *Parser) decodeTags(path string, body *hclsyntax.Body) ([]string, error) {
	var tags []string
	for name, attr := range body.Attributes {
		if name != "tags" {
			return nil, fmt.Errorf("%s:%d: unexpected attribute %q", path, attr.NameRange.Start.Line, name)
		}
		if diags := gohcl.DecodeExpression(attr.Expr, p.evalCtx, &tags); diags.HasErrors() {
			return nil, fmt.Errorf("invalid tags: %w", diags)
		}
	}
	return tags, nil
}

func (p *Parser) decodeActions(path string, body *hclsyntax.Body) ([]domain.Action, error) {
	var actions []domain.Action
	for _, block := range body.Blocks {
		action, err := p.decodeAction(path, block)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (p *Parser) decodeAction(path string, block *hclsyntax.Block) (domain.Action, error) {
	if len(block.Labels) != 0 {
		return domain.Action{}, fmt.Errorf("%s: %s block takes no labels", pos(path, block), block.Type)
	}
	action := domain.Action{Kind: domain.ActionKind(block.Type), Pos: pos(path, block)}

	var diags hcl.Diagnostics
	var timeout string
	switch action.Kind {
	case domain.ActionVisit:
		var v visitBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.URL = v.URL
	case domain.ActionContains:
		var v containsBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.Text, action.Selector, timeout = v.Text, v.Selector, v.Timeout
	case domain.ActionTitleContains:
		var v titleBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.Text, timeout = v.Text, v.Timeout
	case domain.ActionLabel:
		var v labelBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.Name, action.Value = v.Name, v.Value
	case domain.ActionStep:
		var v stepBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.Name = v.Name
	case domain.ActionRun:
		var v runBlock
		diags = gohcl.DecodeBody(block.Body, p.evalCtx, &v)
		action.Command = v.Command
	default:
		return domain.Action{}, fmt.Errorf("%s: unknown action %q", action.Pos, block.Type)
	}
	if diags.HasErrors() {
		return domain.Action{}, fmt.Errorf("invalid %s block: %w", block.Type, diags)
	}

	if err := validateAction(action); err != nil {
		return domain.Action{}, err
	}

	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d < 0 {
			return domain.Action{}, fmt.Errorf("%s: invalid timeout %q", action.Pos, timeout)
		}
		action.Timeout = d
	}
	return action, nil
}

func validateAction(a domain.Action) error {
	var missing string
	switch a.Kind {
	case domain.ActionVisit:
		if a.URL == "" {
			missing = "url"
		}
	case domain.ActionContains, domain.ActionTitleContains:
		if a.Text == "" {
			missing = "text"
		}
	case domain.ActionLabel, domain.ActionStep:
		if a.Name == "" {
			missing = "name"
		}
	case domain.ActionRun:
		if a.Command == "" {
			missing = "command"
		}
	}
	if missing != "" {
		return fmt.Errorf("%s: %s must not be empty", a.Pos, missing)
	}
	return nil
}

func noAttributes(body *hclsyntax.Body, path string) error {
	names := make([]string, 0, len(body.Attributes))
	for name := range body.Attributes {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return fmt.Errorf("%s: unexpected top-level attribute %q", path, names[0])
}

func mergeTags(suite, test []string) []string {
	if len(suite) == 0 && len(test) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, tag := range append(append([]string(nil), suite...), test...) {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

func pos(path string, block *hclsyntax.Block) string {
	return fmt.Sprintf("%s:%d", path, block.TypeRange.Start.Line)
}
