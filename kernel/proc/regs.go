package proc

import "pagelab/kernel/kfmt"

// Regs is the register frame saved into a process descriptor across a trap:
// the general-purpose registers the trap stub pushes, plus the CPU-pushed
// exception frame (rip/cs/rflags/rsp/ss) and the interrupt number/error code
// that selected the handler. A fresh descriptor's Regs is the zero value.
type Regs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	RIP, CS, RFlags, RSP, SS uint64

	IntNo   uint64
	ErrCode uint64
}

// Print outputs a dump of the register values to the active console.
func (r *Regs) Print() {
	kfmt.Printf("RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Printf("RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Printf("RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Printf("RBP = %16x\n", r.RBP)
	kfmt.Printf("RIP = %16x RSP = %16x\n", r.RIP, r.RSP)
	kfmt.Printf("CS  = %16x SS  = %16x\n", r.CS, r.SS)
	kfmt.Printf("RFL = %16x\n", r.RFlags)
	kfmt.Printf("INT = %16x ERR = %16x\n", r.IntNo, r.ErrCode)
}
