// Package ide implements the ATA PIO identify-only controller probe
// spec.md §6's domain stack names: select each of the up to 4 drives on
// the two legacy compatibility-mode channels, issue IDENTIFY, and parse
// the 512-word response into a model string. Grounded on the original
// ide.c's drive-detection loop, adapted here to identify-only (no PIO
// read/write commands) since that is the only capability the core's
// domain stack needs.
package ide

import "github.com/peachsmith/osdev64-sub000/kernel/cpu"

// Channel numbers the two legacy compatibility-mode ATA channels.
type Channel int

const (
	Primary   Channel = 0
	Secondary Channel = 1
)

// ports holds the legacy compatibility-mode I/O base and control base for
// a channel: 0x1F0/0x3F6 for the primary, 0x170/0x376 for the secondary.
var ports = [2]struct{ io, ctrl uint16 }{
	{io: 0x1F0, ctrl: 0x3F6},
	{io: 0x170, ctrl: 0x376},
}

const (
	regData    = 0
	regError   = 1
	regLBA1    = 4
	regLBA2    = 5
	regDrive   = 6
	regStatus  = 7
	regCommand = 7

	statusERR = 0x01
	statusDRQ = 0x08
	statusBSY = 0x80

	cmdIdentify       = 0xEC
	cmdIdentifyPacket = 0xA1

	identModelWordOffset = 27 // words 27-46 hold the model string
	identModelWordCount  = 20

	maxPollAttempts = 1000
)

// portOut/portIn/portInWords are indirected so hosted tests can
// substitute a fake controller instead of linking the bodiless cpu port
// intrinsics.
var (
	portOut      = cpu.Outb
	portIn       = cpu.Inb
	portInWords  = defaultPortInWords
	waitTicks    = defaultWaitTicks
)

func defaultPortInWords(port uint16, buf []uint16) {
	for i := range buf {
		buf[i] = cpu.Inw(port)
	}
}

// defaultWaitTicks is a placeholder for the PIT-backed settle delay the
// original's k_pit_wait(10) calls provide between drive-select and
// command issue; the hosted build has no timer to wait on, so it is a
// no-op unless a test substitutes one.
func defaultWaitTicks(n int) {}

// DeviceType distinguishes a plain ATA drive from an ATAPI one, detected
// via the LBA1/LBA2 signature bytes the original checks after IDENTIFY
// reports an error.
type DeviceType int

const (
	TypeNone DeviceType = iota
	TypeATA
	TypeATAPI
)

// Drive is the identification result for one channel/drive-select slot.
type Drive struct {
	Channel Channel
	Slave   bool
	Type    DeviceType
	Model   string
}

func ioBase(ch Channel) uint16   { return ports[ch].io }
func ctrlBase(ch Channel) uint16 { return ports[ch].ctrl }

func selectDrive(ch Channel, slave bool) {
	sel := uint8(0xA0)
	if slave {
		sel |= 1 << 4
	}
	portOut(ioBase(ch)+regDrive, sel)
	waitTicks(10)
}

// Identify probes one drive slot, returning TypeNone if nothing
// responded within maxPollAttempts polls of the status register.
func Identify(ch Channel, slave bool) Drive {
	d := Drive{Channel: ch, Slave: slave}

	selectDrive(ch, slave)
	portOut(ioBase(ch)+regCommand, cmdIdentify)
	waitTicks(10)

	var status uint8
	failed := false
	for attempt := 0; ; attempt++ {
		status = portIn(ioBase(ch) + regStatus)
		if status&statusERR != 0 {
			failed = true
			break
		}
		if status&statusBSY == 0 && status&statusDRQ != 0 {
			break
		}
		if attempt >= maxPollAttempts {
			return d
		}
	}

	if failed {
		cl := portIn(ioBase(ch) + regLBA1)
		chh := portIn(ioBase(ch) + regLBA2)
		if (cl == 0x14 && chh == 0xEB) || (cl == 0x69 && chh == 0x96) {
			d.Type = TypeATAPI
			portOut(ioBase(ch)+regCommand, cmdIdentifyPacket)
			waitTicks(10)
		} else {
			return d
		}
	} else {
		d.Type = TypeATA
	}

	var words [256]uint16
	portInWords(ioBase(ch)+regData, words[:])
	d.Model = decodeModel(words[identModelWordOffset : identModelWordOffset+identModelWordCount])
	return d
}

// decodeModel converts the word-swapped ASCII pairs ATA IDENTIFY packs
// into the model string field into a trimmed Go string.
func decodeModel(words []uint16) string {
	b := make([]byte, 0, len(words)*2)
	for _, w := range words {
		b = append(b, byte(w>>8), byte(w))
	}
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

// ProbeAll identifies all 4 legacy drive slots (primary/secondary x
// master/slave), returning only the ones that responded.
func ProbeAll() []Drive {
	var found []Drive
	for _, ch := range [2]Channel{Primary, Secondary} {
		portOut(ctrlBase(ch), 2) // disable IRQs, per the original's setup
		for _, slave := range [2]bool{false, true} {
			d := Identify(ch, slave)
			if d.Type != TypeNone {
				found = append(found, d)
			}
		}
	}
	return found
}
