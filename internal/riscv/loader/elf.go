// Package loader reads a RISC-V ELF binary into guest physical memory and
// builds the initial stack image (argv, envp, auxv) a freshly started hart
// expects, following the System V ABI the Linux loader itself uses.
package loader

import (
	"debug/elf"
	"fmt"

	"github.com/wkrp/rvemu/internal/riscv"
)

// Image describes a loaded binary: its entry point, the highest address any
// loaded segment reached (the initial program break), and whether it was
// built for RV32 or RV64.
type Image struct {
	Entry   uint64
	BreakAt uint64
	XLEN    riscv.XLEN
}

// Load reads the ELF file's PT_LOAD segments into bus starting at their
// stated physical/virtual addresses and returns the resulting Image.
func Load(bus *riscv.Bus, f *elf.File) (Image, error) {
	var xlen riscv.XLEN

	switch f.Class {
	case elf.ELFCLASS32:
		xlen = riscv.XLEN32
	case elf.ELFCLASS64:
		xlen = riscv.XLEN64
	default:
		return Image{}, fmt.Errorf("loader: unsupported ELF class %s", f.Class)
	}

	if f.Machine != elf.EM_RISCV {
		return Image{}, fmt.Errorf("loader: unsupported machine %s, want EM_RISCV", f.Machine)
	}

	var breakAt uint64

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return Image{}, fmt.Errorf("loader: reading segment: %w", err)
		}

		for i, b := range data {
			if err := bus.Store(prog.Vaddr+uint64(i), riscv.Byte, uint64(b), riscv.IntentWrite); err != nil {
				return Image{}, fmt.Errorf("loader: mapping segment at %#x: %w", prog.Vaddr, err)
			}
		}

		// Zero-fill the portion of the segment beyond the file image
		// (.bss), per PT_LOAD's p_memsz > p_filesz convention.
		for i := prog.Filesz; i < prog.Memsz; i++ {
			if err := bus.Store(prog.Vaddr+i, riscv.Byte, 0, riscv.IntentWrite); err != nil {
				return Image{}, fmt.Errorf("loader: zeroing bss at %#x: %w", prog.Vaddr, err)
			}
		}

		if end := prog.Vaddr + prog.Memsz; end > breakAt {
			breakAt = end
		}
	}

	return Image{Entry: f.Entry, BreakAt: alignUp(breakAt, 4096), XLEN: xlen}, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// auxv tag values used by the Linux RISC-V ABI's initial stack image.
const (
	auxNULL   = 0
	auxPHDR   = 3
	auxPHENT  = 4
	auxPHNUM  = 5
	auxPAGESZ = 6
	auxBASE   = 7
	auxENTRY  = 9
	auxHWCAP  = 16
	auxUID    = 11
	auxEUID   = 12
	auxGID    = 13
	auxEGID   = 14
	auxSECURE = 23
	auxRANDOM = 25
)

// BuildStack constructs the argv/envp/auxv image Linux places above the
// initial stack pointer, and returns the resulting (downward-growing) stack
// pointer to seed x2/sp with.
func BuildStack(bus *riscv.Bus, top uint64, xlen riscv.XLEN, img Image, f *elf.File, argv, envp []string) (uint64, error) {
	wordSize := uint64(8)
	if xlen == riscv.XLEN32 {
		wordSize = 4
	}

	sp := top

	writeStr := func(s string) uint64 {
		b := append([]byte(s), 0)
		sp -= uint64(len(b))

		for i, c := range b {
			bus.Store(sp+uint64(i), riscv.Byte, uint64(c), riscv.IntentWrite)
		}

		return sp
	}

	var randomBytes [16]byte

	randomAddr := writeBytes(bus, &sp, randomBytes[:])

	argvAddrs := make([]uint64, len(argv))
	for i, s := range argv {
		argvAddrs[i] = writeStr(s)
	}

	envpAddrs := make([]uint64, len(envp))
	for i, s := range envp {
		envpAddrs[i] = writeStr(s)
	}

	// Align the stack pointer to 16 bytes before laying down the vector
	// tables, per the platform ABI's requirement at process entry.
	sp &^= 15

	type auxEntry struct{ tag, val uint64 }

	// ELF program header entry size is fixed per class.
	phent := uint64(32)
	if xlen == riscv.XLEN64 {
		phent = 56
	}

	aux := []auxEntry{
		{auxPHDR, phdrVaddr(f)},
		{auxPHENT, phent},
		{auxPHNUM, uint64(len(f.Progs))},
		{auxPAGESZ, 4096},
		{auxBASE, 0},
		{auxENTRY, img.Entry},
		{auxUID, 0},
		{auxEUID, 0},
		{auxGID, 0},
		{auxEGID, 0},
		{auxSECURE, 0},
		{auxRANDOM, randomAddr},
		{auxNULL, 0},
	}

	writeWord := func(v uint64) {
		sp -= wordSize
		bus.Store(sp, widthOf(wordSize), v, riscv.IntentWrite)
	}

	for i := len(aux) - 1; i >= 0; i-- {
		writeWord(aux[i].val)
		writeWord(aux[i].tag)
	}

	writeWord(0) // envp terminator
	for i := len(envpAddrs) - 1; i >= 0; i-- {
		writeWord(envpAddrs[i])
	}

	writeWord(0) // argv terminator
	for i := len(argvAddrs) - 1; i >= 0; i-- {
		writeWord(argvAddrs[i])
	}

	writeWord(uint64(len(argvAddrs))) // argc

	return sp, nil
}

func widthOf(wordSize uint64) riscv.Width {
	if wordSize == 4 {
		return riscv.Word
	}

	return riscv.Doubleword
}

func writeBytes(bus *riscv.Bus, sp *uint64, data []byte) uint64 {
	*sp -= uint64(len(data))

	for i, b := range data {
		bus.Store(*sp+uint64(i), riscv.Byte, uint64(b), riscv.IntentWrite)
	}

	return *sp
}

func phdrVaddr(f *elf.File) uint64 {
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_PHDR {
			return prog.Vaddr
		}
	}

	// Fall back to the first program header's segment base plus the ELF header size,
	// the conventional layout when no PT_PHDR is present.
	if len(f.Progs) > 0 {
		return f.Progs[0].Vaddr + 64
	}

	return 0
}
