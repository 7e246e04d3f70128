package riscv

import "strconv"

var kindNames = map[Kind]string{
	KindInvalid: "Invalid",

	KindLUI: "LUI", KindAUIPC: "AUIPC", KindJAL: "JAL", KindJALR: "JALR",
	KindBEQ: "BEQ", KindBNE: "BNE", KindBLT: "BLT", KindBGE: "BGE",
	KindBLTU: "BLTU", KindBGEU: "BGEU",
	KindLB: "LB", KindLH: "LH", KindLW: "LW", KindLBU: "LBU", KindLHU: "LHU",
	KindLWU: "LWU", KindLD: "LD",
	KindSB: "SB", KindSH: "SH", KindSW: "SW", KindSD: "SD",
	KindADDI: "ADDI", KindSLTI: "SLTI", KindSLTIU: "SLTIU", KindXORI: "XORI",
	KindORI: "ORI", KindANDI: "ANDI", KindSLLI: "SLLI", KindSRLI: "SRLI",
	KindSRAI: "SRAI",
	KindADD: "ADD", KindSUB: "SUB", KindSLL: "SLL", KindSLT: "SLT",
	KindSLTU: "SLTU", KindXOR: "XOR", KindSRL: "SRL", KindSRA: "SRA",
	KindOR: "OR", KindAND: "AND",
	KindADDIW: "ADDIW", KindSLLIW: "SLLIW", KindSRLIW: "SRLIW", KindSRAIW: "SRAIW",
	KindADDW: "ADDW", KindSUBW: "SUBW", KindSLLW: "SLLW", KindSRLW: "SRLW", KindSRAW: "SRAW",
	KindFENCE: "FENCE", KindFENCEI: "FENCE.I", KindECALL: "ECALL", KindEBREAK: "EBREAK",

	KindMUL: "MUL", KindMULH: "MULH", KindMULHU: "MULHU", KindMULHSU: "MULHSU",
	KindDIV: "DIV", KindDIVU: "DIVU", KindREM: "REM", KindREMU: "REMU",
	KindMULW: "MULW", KindDIVW: "DIVW", KindDIVUW: "DIVUW", KindREMW: "REMW", KindREMUW: "REMUW",

	KindLRW: "LR.W", KindSCW: "SC.W", KindAMOSWAPW: "AMOSWAP.W", KindAMOADDW: "AMOADD.W",
	KindAMOANDW: "AMOAND.W", KindAMOORW: "AMOOR.W", KindAMOXORW: "AMOXOR.W",
	KindAMOMINW: "AMOMIN.W", KindAMOMAXW: "AMOMAX.W", KindAMOMINUW: "AMOMINU.W", KindAMOMAXUW: "AMOMAXU.W",
	KindLRD: "LR.D", KindSCD: "SC.D", KindAMOSWAPD: "AMOSWAP.D", KindAMOADDD: "AMOADD.D",
	KindAMOANDD: "AMOAND.D", KindAMOORD: "AMOOR.D", KindAMOXORD: "AMOXOR.D",
	KindAMOMIND: "AMOMIN.D", KindAMOMAXD: "AMOMAX.D", KindAMOMINUD: "AMOMINU.D", KindAMOMAXUD: "AMOMAXU.D",

	KindFLW: "FLW", KindFSW: "FSW", KindFLD: "FLD", KindFSD: "FSD",
	KindFADDS: "FADD.S", KindFSUBS: "FSUB.S", KindFMULS: "FMUL.S", KindFDIVS: "FDIV.S", KindFSQRTS: "FSQRT.S",
	KindFMADDS: "FMADD.S", KindFMSUBS: "FMSUB.S", KindFNMSUBS: "FNMSUB.S", KindFNMADDS: "FNMADD.S",
	KindFSGNJS: "FSGNJ.S", KindFSGNJNS: "FSGNJN.S", KindFSGNJXS: "FSGNJX.S",
	KindFMINS: "FMIN.S", KindFMAXS: "FMAX.S",
	KindFEQS: "FEQ.S", KindFLTS: "FLT.S", KindFLES: "FLE.S", KindFCLASSS: "FCLASS.S",
	KindFCVTWS: "FCVT.W.S", KindFCVTWUS: "FCVT.WU.S", KindFCVTLS: "FCVT.L.S", KindFCVTLUS: "FCVT.LU.S",
	KindFCVTSW: "FCVT.S.W", KindFCVTSWU: "FCVT.S.WU", KindFCVTSL: "FCVT.S.L", KindFCVTSLU: "FCVT.S.LU",
	KindFMVXW: "FMV.X.W", KindFMVWX: "FMV.W.X",

	KindFADDD: "FADD.D", KindFSUBD: "FSUB.D", KindFMULD: "FMUL.D", KindFDIVD: "FDIV.D", KindFSQRTD: "FSQRT.D",
	KindFMADDD: "FMADD.D", KindFMSUBD: "FMSUB.D", KindFNMSUBD: "FNMSUB.D", KindFNMADDD: "FNMADD.D",
	KindFSGNJD: "FSGNJ.D", KindFSGNJND: "FSGNJN.D", KindFSGNJXD: "FSGNJX.D",
	KindFMIND: "FMIN.D", KindFMAXD: "FMAX.D",
	KindFEQD: "FEQ.D", KindFLTD: "FLT.D", KindFLED: "FLE.D", KindFCLASSD: "FCLASS.D",
	KindFCVTWD: "FCVT.W.D", KindFCVTWUD: "FCVT.WU.D", KindFCVTLD: "FCVT.L.D", KindFCVTLUD: "FCVT.LU.D",
	KindFCVTDW: "FCVT.D.W", KindFCVTDWU: "FCVT.D.WU", KindFCVTDL: "FCVT.D.L", KindFCVTDLU: "FCVT.D.LU",
	KindFCVTSD: "FCVT.S.D", KindFCVTDS: "FCVT.D.S",
	KindFMVXD: "FMV.X.D", KindFMVDX: "FMV.D.X",

	KindMRET: "MRET", KindSRET: "SRET", KindWFI: "WFI", KindSFENCEVMA: "SFENCE.VMA",
	KindCSRRW: "CSRRW", KindCSRRS: "CSRRS", KindCSRRC: "CSRRC",
	KindCSRRWI: "CSRRWI", KindCSRRSI: "CSRRSI", KindCSRRCI: "CSRRCI",
}

// String renders the assembly mnemonic for a decoded kind, falling back to a
// numeric form for anything outside the known table (there shouldn't be any).
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}
