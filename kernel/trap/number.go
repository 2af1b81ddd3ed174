// Package trap implements exception and syscall dispatch: the trap number
// demultiplex, the syscall ABI, and the page-fault handler. The dispatcher
// is modeled as a total match over a tagged Number variant, per the design
// notes, returning the Action the caller's run loop must take next instead
// of calling into the scheduler itself.
package trap

// Number identifies a trap: a syscall requested by a user process, or a
// hardware exception.
type Number uint8

const (
	// Panic terminates the VM with a copied user message.
	Panic Number = iota
	// Getpid returns the caller's pid.
	Getpid
	// Fork duplicates the caller into a new process.
	Fork
	// Exit frees the caller and schedules.
	Exit
	// Yield schedules without freeing anything.
	Yield
	// PageAlloc allocates and maps a single frame at a requested address.
	PageAlloc
	// Brk sets the program break to an absolute address.
	Brk
	// Sbrk adjusts the program break by a relative amount.
	Sbrk
	// Mapping writes a virtual_memory_lookup result into user memory.
	Mapping
	// MemTog toggles the global viewer flag or a process's display status.
	MemTog
	// Timer is the hardware timer interrupt.
	Timer
	// PageFault is the hardware page-fault exception.
	PageFault
	// GPF is the hardware general-protection-fault exception.
	GPF
)

// Action is what the dispatcher's run loop must do after Dispatch returns.
type Action uint8

const (
	// ActionContinue resumes the current process without rescheduling.
	ActionContinue Action = iota
	// ActionSchedule means the current process suspended voluntarily or
	// the timer fired; the run loop must call the scheduler.
	ActionSchedule
	// ActionTerminate means the whole VM should stop (a PANIC trap or a
	// kernel-mode page fault).
	ActionTerminate
)
