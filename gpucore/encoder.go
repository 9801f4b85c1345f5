package gpucore

import "fmt"

// CommandKind identifies a recorded command.
type CommandKind uint8

// Command kinds.
const (
	// CommandDispatch runs a compute program over a grid of work-groups.
	CommandDispatch CommandKind = iota + 1

	// CommandBarrier makes all writes to the listed textures visible to
	// commands recorded after it.
	CommandBarrier
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case CommandDispatch:
		return "dispatch"
	case CommandBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("CommandKind(%d)", k)
	}
}

// Dispatch describes one compute dispatch.
type Dispatch struct {
	// Label is an optional debug label.
	Label string

	// Program is the compiled program to run.
	Program ProgramID

	// Args are the program bindings.
	Args KernelArgs

	// Groups is the number of work-groups in X and Y.
	Groups [2]uint32
}

// Command is one recorded command.
type Command struct {
	Kind     CommandKind
	Dispatch Dispatch

	// Textures lists the textures a barrier applies to.
	Textures []TextureID
}

// CommandBuffer is an immutable, recorded list of commands.
type CommandBuffer struct {
	label    string
	commands []Command
}

// Label returns the debug label of the command buffer.
func (cb *CommandBuffer) Label() string { return cb.label }

// Commands returns the recorded commands in execution order.
// The returned slice must not be modified.
func (cb *CommandBuffer) Commands() []Command { return cb.commands }

// CommandEncoder records commands into a CommandBuffer.
//
// Usage:
//  1. Obtain an encoder from NewCommandEncoder
//  2. Record dispatches and barriers
//  3. Call Finish and pass the buffer to Device.Submit
//
// The encoder is single-use and cannot be reused after Finish.
type CommandEncoder struct {
	cb       *CommandBuffer
	finished bool
}

// NewCommandEncoder creates an encoder for a new command buffer.
func NewCommandEncoder(label string) *CommandEncoder {
	return &CommandEncoder{cb: &CommandBuffer{label: label}}
}

// Dispatch records a compute dispatch.
func (e *CommandEncoder) Dispatch(d Dispatch) {
	e.mustRecord()
	e.cb.commands = append(e.cb.commands, Command{Kind: CommandDispatch, Dispatch: d})
}

// Barrier records a barrier on textures written by earlier dispatches.
func (e *CommandEncoder) Barrier(textures ...TextureID) {
	e.mustRecord()
	ids := make([]TextureID, len(textures))
	copy(ids, textures)
	e.cb.commands = append(e.cb.commands, Command{Kind: CommandBarrier, Textures: ids})
}

// Finish ends recording and returns the command buffer.
func (e *CommandEncoder) Finish() *CommandBuffer {
	e.mustRecord()
	e.finished = true
	return e.cb
}

func (e *CommandEncoder) mustRecord() {
	if e.finished {
		panic("gpucore: command encoder used after Finish")
	}
}
