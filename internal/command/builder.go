package command

import "github.com/crushshell/crush/internal/value"

// DescriptorBuilder is the fluent API builtin packages use to declare a
// command.
type DescriptorBuilder struct {
	d *Descriptor
}

// NewDescriptor starts building the command at path (e.g. "global:string:len").
func NewDescriptor(path string) *DescriptorBuilder {
	return &DescriptorBuilder{d: &Descriptor{Path: path}}
}

// Summary sets the one-line description shown by help/completion.
func (b *DescriptorBuilder) Summary(s string) *DescriptorBuilder {
	b.d.Summary = s
	return b
}

// CanBlock marks the command as doing blocking I/O, so internal/exec always
// schedules it on its own goroutine rather than inlining it.
func (b *DescriptorBuilder) CanBlock() *DescriptorBuilder {
	b.d.CanBlock = true
	return b
}

// Param starts describing one argument; call Done on the returned
// ParamBuilder to return here.
func (b *DescriptorBuilder) Param(name string) *ParamBuilder {
	return &ParamBuilder{parent: b, arg: ArgumentDescription{Name: name, Required: true}}
}

// Run sets the command body.
func (b *DescriptorBuilder) Run(fn Func) *DescriptorBuilder {
	b.d.fn = fn
	return b
}

// Build finalizes the descriptor.
func (b *DescriptorBuilder) Build() *Descriptor { return b.d }

// ParamBuilder describes one ArgumentDescription through a fluent
// constraint API.
type ParamBuilder struct {
	parent *DescriptorBuilder
	arg    ArgumentDescription
}

// OfType sets the parameter's declared type.
func (p *ParamBuilder) OfType(t value.Type) *ParamBuilder {
	p.arg.Type = t
	return p
}

// Optional marks the parameter as not required, recording v as its default.
func (p *ParamBuilder) Optional(v value.Value) *ParamBuilder {
	p.arg.Required = false
	p.arg.Default = v
	return p
}

// Unnamed marks this parameter as the positional-splat sink (`@name`
// collects every remaining positional argument into a List).
func (p *ParamBuilder) Unnamed() *ParamBuilder {
	p.arg.Unnamed = true
	p.arg.Required = false
	return p
}

// Named marks this parameter as the dict-splat sink (`@@name` collects
// every remaining named argument into a Dict).
func (p *ParamBuilder) Named() *ParamBuilder {
	p.arg.Named = true
	p.arg.Required = false
	return p
}

// AllowedValues restricts the parameter to one of vs, validated at bind time.
func (p *ParamBuilder) AllowedValues(vs ...value.Value) *ParamBuilder {
	p.arg.AllowedValues = vs
	return p
}

// Description sets the help text for this parameter.
func (p *ParamBuilder) Description(s string) *ParamBuilder {
	p.arg.Description = s
	return p
}

// Done records the parameter and returns to the parent DescriptorBuilder.
func (p *ParamBuilder) Done() *DescriptorBuilder {
	p.parent.d.Arguments = append(p.parent.d.Arguments, p.arg)
	return p.parent
}
