package kernel

import (
	"fmt"
	"io"

	"github.com/clabby/brisc/faults"
)

// Linux errno values used in syscall return codes.
const (
	errBADF  = 9
	errIO    = 5
	errNOSYS = 38
)

// DefaultKernel is a minimal host kernel sufficient to run riscv-tests
// style bare-metal binaries: read on fd 0 and write on fds 1/2, served
// directly from the streams given to NewDefaultKernel, plus program
// exit. The FDTable it creates is not consulted by Syscall.
type DefaultKernel struct {
	fds    *FDTable
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewDefaultKernel creates a kernel that services stdin/stdout/stderr
// through the given streams.
func NewDefaultKernel(stdin io.Reader, stdout, stderr io.Writer) *DefaultKernel {
	return &DefaultKernel{
		fds:    NewFDTable(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
}

// Syscall dispatches on a7 per the riscv-tests ABI.
func (k *DefaultKernel) Syscall(regs Registers, mem Memory) (Result, error) {
	switch num := regs.Read(RegA7); num {
	case SyscallExit:
		return Result{Exited: true, ExitCode: int64(regs.Read(RegA0))}, nil
	case SyscallRead:
		return Result{}, k.handleRead(regs, mem)
	case SyscallWrite:
		return Result{}, k.handleWrite(regs, mem)
	default:
		return Result{}, fmt.Errorf("kernel: syscall %d: %w", num, faults.ErrUnsupportedSyscall)
	}
}

func (k *DefaultKernel) handleRead(regs Registers, mem Memory) error {
	fd := regs.Read(RegA0)
	bufPtr := regs.Read(RegA1)
	count := regs.Read(RegA2)

	if fd != 0 {
		k.setErrno(regs, errBADF)
		return nil
	}
	if k.stdin == nil {
		regs.Write(RegA0, 0)
		return nil
	}

	buf := make([]byte, count)
	n, err := k.stdin.Read(buf)
	if err != nil && n == 0 {
		regs.Write(RegA0, 0)
		return nil
	}
	for i := 0; i < n; i++ {
		if err := mem.Write(bufPtr+uint64(i), 1, uint64(buf[i])); err != nil {
			return err
		}
	}
	regs.Write(RegA0, uint64(n))
	return nil
}

func (k *DefaultKernel) handleWrite(regs Registers, mem Memory) error {
	fd := regs.Read(RegA0)
	bufPtr := regs.Read(RegA1)
	count := regs.Read(RegA2)

	var w io.Writer
	switch fd {
	case 1:
		w = k.stdout
	case 2:
		w = k.stderr
	default:
		k.setErrno(regs, errBADF)
		return nil
	}

	buf := make([]byte, count)
	for i := uint64(0); i < count; i++ {
		b, err := mem.Read(bufPtr+i, 1)
		if err != nil {
			return err
		}
		buf[i] = byte(b)
	}

	n, err := w.Write(buf)
	if err != nil {
		k.setErrno(regs, errIO)
		return nil
	}
	regs.Write(RegA0, uint64(n))
	return nil
}

func (k *DefaultKernel) setErrno(regs Registers, errno int) {
	regs.Write(RegA0, uint64(-int64(errno)))
}
