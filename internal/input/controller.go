// Package input implements standard NES controller handling: the shift
// register behind $4016/$4017 that SPEC_FULL.md's external input
// collaborator sits behind.
package input

import "log"

// Button identifies one of the eight bits in a standard controller's
// shift register.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Short aliases for callers that don't need the Button prefix.
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller models one standard NES controller's shift register.
// Writing 1 then 0 to $4016 (strobe) latches the current button state;
// each subsequent read shifts one bit out, least-significant first.
type Controller struct {
	buttons uint8 // live state, one bit per Button

	shiftRegister  uint8
	buttonSnapshot uint8 // state latched by the last strobe write
	strobe         bool
	bitPosition    uint8 // 0-7 during the button sequence, 8+ for extended reads

	readCount    uint64
	writeCount   uint64
	debugEnabled bool
}

// New creates a Controller with no buttons held.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	before := c.buttons
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
	if c.debugEnabled {
		log.Printf("[controller] SetButton button=%d pressed=%t buttons=0x%02X->0x%02X",
			uint8(button), pressed, before, c.buttons)
	}
}

// SetButtons replaces all eight button states at once, indexed in NES
// shift-register order: A, B, Select, Start, Up, Down, Left, Right.
func (c *Controller) SetButtons(buttons [8]bool) {
	before := c.buttons
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	c.buttons = 0
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= uint8(order[i])
		}
	}
	if c.debugEnabled {
		log.Printf("[controller] SetButtons buttons=0x%02X->0x%02X", before, c.buttons)
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a write to the controller's strobe line ($4016). While
// strobe is held high the shift register continuously reloads from the
// live button state; the falling edge freezes a snapshot for the read
// sequence that follows.
func (c *Controller) Write(value uint8) {
	c.writeCount++
	wasStrobing := c.strobe
	c.strobe = value&1 != 0

	switch {
	case c.strobe:
		c.latch()
	case wasStrobing:
		c.latch()
	}
}

func (c *Controller) latch() {
	c.buttonSnapshot = c.buttons
	c.shiftRegister = c.buttonSnapshot
	c.bitPosition = 0
}

// Read shifts the next button bit out of the register. While strobe is
// held high every read returns the A button's live state without
// advancing; reads past the eighth bit return 0 (open bus, per this
// core's treatment of extended reads).
func (c *Controller) Read() uint8 {
	c.readCount++

	if c.strobe {
		c.bitPosition = 0
		return c.buttons & 1
	}

	if c.bitPosition >= 8 {
		c.bitPosition++
		return 0
	}

	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Reset clears all controller state, as happens on console reset.
func (c *Controller) Reset() {
	*c = Controller{}
}

// EnableDebug toggles per-read/write logging.
func (c *Controller) EnableDebug(enable bool) {
	c.debugEnabled = enable
}

// GetBitPosition reports how many bits have been shifted out since the
// last strobe, for tests that assert on shift-register progress.
func (c *Controller) GetBitPosition() uint8 {
	return c.bitPosition
}

// InputState owns both standard controller ports.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates two independent controllers.
func NewInputState() *InputState {
	return &InputState{Controller1: New(), Controller2: New()}
}

// Reset resets both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// EnableDebug toggles logging on both controllers.
func (is *InputState) EnableDebug(enable bool) {
	is.Controller1.EnableDebug(enable)
	is.Controller2.EnableDebug(enable)
}

// SetButtons1 sets controller 1's button state.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets controller 2's button state.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read dispatches a CPU-bus read to the addressed controller port.
// $4017 carries bit 6 set on real hardware (open-bus behavior shared
// with the APU's frame-counter register at the same address).
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write dispatches a CPU-bus write; $4016 strobes both controllers
// simultaneously, matching real NES wiring.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
