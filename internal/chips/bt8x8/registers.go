package bt8x8

// Register offsets in BAR0.
const (
	regDStatus    = 0x000
	regIForm      = 0x004
	regEControl   = 0x02c
	regSReset     = 0x07c
	regTGCtrl     = 0x084
	regOControl   = 0x0ac
	regCapCtl     = 0x0dc
	regPLLFLo     = 0x0f0
	regPLLFHi     = 0x0f4
	regPLLXCI     = 0x0f8
	regIntStat    = 0x100
	regIntMask    = 0x104
	regGPIODMACtl = 0x10c
)

// DSTATUS bits.
const (
	dstatusPres  = 1 << 7
	dstatusPLock = 1 << 2
)

// Interrupt bits. INT_STAT is write-one-to-clear.
const (
	intVSync = 1 << 1
	intFDSR  = 1 << 14
	intSCErr = 1 << 19
	intOCErr = 1 << 20

	intErrors = intFDSR | intSCErr | intOCErr
)

const (
	iformMuxShift = 5
	iformMuxMask  = 0x3 << iformMuxShift

	controlComp = 1 << 6

	tgctrlPLL   = 0x08
	tgctrlNoPLL = 0x00

	pllX = 1 << 7

	capVBIEven = 1 << 3
	capVBIOdd  = 1 << 2

	dmaFIFOEnable = 1 << 0
	dmaRISCEnable = 1 << 1
)

const (
	pllOutFreq  = 35468950
	xtal28      = 28636363
	xtal35      = 35468950
	vbiLinesPer = 16
)

// pllDividers computes the PLL_F_LO, PLL_F_HI and PLL_XCI values that derive
// fout from fin. The integer part and two fraction bytes are taken of
// (fout*12/4)/(fin/4), which keeps every intermediate within 32 bits.
func pllDividers(fin, fout uint32) (lo, hi, xci uint32) {
	fin /= 4
	fout /= 4
	fout *= 12
	fi := fout / fin
	fout = (fout % fin) * 256
	fh := fout / fin
	fout = (fout % fin) * 256
	fl := fout / fin
	return fl, fh, fi | pllX
}
