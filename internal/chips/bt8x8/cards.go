package bt8x8

// PLL types of the card table.
const (
	PLLNone = 0
	PLL28   = 1 // 28.636 MHz crystal, PLL programmed to the PAL sampling clock
	PLL35   = 2 // 35.468 MHz crystal
)

const noInput = -1

// card describes one board model built around a Bt8x8 chip.
type card struct {
	name       string
	inputs     int
	tuner      int     // index of the RF tuner input, noInput if none
	svideo     int     // index of the S-Video input, noInput if none
	muxsel     []uint8 // IFORM mux value per input
	pll        int
	subsystems []uint32 // PCI subsystem ids used for autodetection
}

// Model indexes 0..15 follow the historical bttv numbering so stored
// configurations stay valid.
var cards = []card{
	{name: "*Unknown/generic card*", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 1}},
	{name: "MIRO PCTV", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 1}},
	{name: "Hauppauge (bt848)", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 1}},
	{name: "STB, Gateway P/N 6000699 (bt848)", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}},
	{name: "Intel Create and Share PCI / Smart Video Recorder III", inputs: 4, tuner: noInput, svideo: 2, muxsel: []uint8{2, 3, 1, 1}},
	{name: "Diamond DTV2000", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 0}},
	{name: "AVerMedia TVPhone", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}},
	{name: "MATRIX-Vision MV-Delta", inputs: 5, tuner: noInput, svideo: 3, muxsel: []uint8{2, 3, 1, 0, 0}},
	{name: "Lifeview FlyVideo II (Bt848) LR26", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 1}},
	{name: "IMS/IXmicro TurboTV", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28},
	{name: "Hauppauge (bt878)", inputs: 4, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1, 1}, pll: PLL28,
		subsystems: []uint32{0x13eb0070, 0x39000070, 0x45000070, 0x45010070, 0xff000070, 0xff010070}},
	{name: "MIRO PCTV pro", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}},
	{name: "ADS Technologies Channel Surfer TV (bt848)", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}},
	{name: "AVerMedia TVCapture 98", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28,
		subsystems: []uint32{0x00011461, 0x00021461, 0x00031461, 0x00041461}},
	{name: "Aimslab Video Highway Xtreme (VHX)", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28},
	{name: "Zoltrix TV-Max", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}},
	{name: "Prolink Pixelview PlayTV (bt878)", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28,
		subsystems: []uint32{0x1554a0fc}},
	{name: "Leadtek WinView 601", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28,
		subsystems: []uint32{0x6606107d, 0x6607107d}},
	{name: "Pinnacle PCTV Studio/Rave", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28,
		subsystems: []uint32{0x0003153b, 0x0001153b}},
	{name: "Terratec TerraTV+", inputs: 3, tuner: 0, svideo: 2, muxsel: []uint8{2, 3, 1}, pll: PLL28,
		subsystems: []uint32{0x1117153b, 0x1118153b, 0x1119153b}},
	{name: "Osprey 100/150 (878)", inputs: 4, tuner: noInput, svideo: 1, muxsel: []uint8{3, 2, 0, 1}, pll: PLL28},
}

func lookupCard(model int) (card, bool) {
	if model < 0 || model >= len(cards) {
		return card{}, false
	}
	return cards[model], true
}
