package riscv

// opcodes.go enumerates the decoded instruction kinds the executor dispatches
// on. The decoder is pure: it never touches hart state, only the raw 32-bit
// instruction word.

// Kind identifies a decoded operation. The executor is a fan-out switch on
// Kind; see exec.go.
type Kind uint16

//go:generate stringer -type=Kind

const (
	KindInvalid Kind = iota

	// RV32I / RV64I base.
	KindLUI
	KindAUIPC
	KindJAL
	KindJALR
	KindBEQ
	KindBNE
	KindBLT
	KindBGE
	KindBLTU
	KindBGEU
	KindLB
	KindLH
	KindLW
	KindLBU
	KindLHU
	KindLWU
	KindLD
	KindSB
	KindSH
	KindSW
	KindSD
	KindADDI
	KindSLTI
	KindSLTIU
	KindXORI
	KindORI
	KindANDI
	KindSLLI
	KindSRLI
	KindSRAI
	KindADD
	KindSUB
	KindSLL
	KindSLT
	KindSLTU
	KindXOR
	KindSRL
	KindSRA
	KindOR
	KindAND
	KindADDIW
	KindSLLIW
	KindSRLIW
	KindSRAIW
	KindADDW
	KindSUBW
	KindSLLW
	KindSRLW
	KindSRAW
	KindFENCE
	KindFENCEI
	KindECALL
	KindEBREAK

	// M extension.
	KindMUL
	KindMULH
	KindMULHU
	KindMULHSU
	KindDIV
	KindDIVU
	KindREM
	KindREMU
	KindMULW
	KindDIVW
	KindDIVUW
	KindREMW
	KindREMUW

	// A extension.
	KindLRW
	KindSCW
	KindAMOSWAPW
	KindAMOADDW
	KindAMOANDW
	KindAMOORW
	KindAMOXORW
	KindAMOMINW
	KindAMOMAXW
	KindAMOMINUW
	KindAMOMAXUW
	KindLRD
	KindSCD
	KindAMOSWAPD
	KindAMOADDD
	KindAMOANDD
	KindAMOORD
	KindAMOXORD
	KindAMOMIND
	KindAMOMAXD
	KindAMOMINUD
	KindAMOMAXUD

	// F/D extension.
	KindFLW
	KindFSW
	KindFLD
	KindFSD
	KindFADDS
	KindFSUBS
	KindFMULS
	KindFDIVS
	KindFSQRTS
	KindFMADDS
	KindFMSUBS
	KindFNMSUBS
	KindFNMADDS
	KindFSGNJS
	KindFSGNJNS
	KindFSGNJXS
	KindFMINS
	KindFMAXS
	KindFEQS
	KindFLTS
	KindFLES
	KindFCLASSS
	KindFCVTWS
	KindFCVTWUS
	KindFCVTLS
	KindFCVTLUS
	KindFCVTSW
	KindFCVTSWU
	KindFCVTSL
	KindFCVTSLU
	KindFMVXW
	KindFMVWX
	KindFADDD
	KindFSUBD
	KindFMULD
	KindFDIVD
	KindFSQRTD
	KindFMADDD
	KindFMSUBD
	KindFNMSUBD
	KindFNMADDD
	KindFSGNJD
	KindFSGNJND
	KindFSGNJXD
	KindFMIND
	KindFMAXD
	KindFEQD
	KindFLTD
	KindFLED
	KindFCLASSD
	KindFCVTWD
	KindFCVTWUD
	KindFCVTLD
	KindFCVTLUD
	KindFCVTDW
	KindFCVTDWU
	KindFCVTDL
	KindFCVTDLU
	KindFCVTSD
	KindFCVTDS
	KindFMVXD
	KindFMVDX

	// System.
	KindMRET
	KindSRET
	KindWFI
	KindSFENCEVMA
	KindCSRRW
	KindCSRRS
	KindCSRRC
	KindCSRRWI
	KindCSRRSI
	KindCSRRCI
)

// Opcode values, low 7 bits of every RISC-V instruction.
const (
	opLOAD     = 0b0000011
	opLOADFP   = 0b0000111
	opMISCMEM  = 0b0001111
	opOPIMM    = 0b0010011
	opAUIPC    = 0b0010111
	opOPIMM32  = 0b0011011
	opSTORE    = 0b0100011
	opSTOREFP  = 0b0100111
	opAMO      = 0b0101111
	opOP       = 0b0110011
	opLUI      = 0b0110111
	opOP32     = 0b0111011
	opMADD     = 0b1000011
	opMSUB     = 0b1000111
	opNMSUB    = 0b1001011
	opNMADD    = 0b1001111
	opOPFP     = 0b1010011
	opBRANCH   = 0b1100011
	opJALR     = 0b1100111
	opJAL      = 0b1101111
	opSYSTEM   = 0b1110011
)
