package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/sn-x/snx-sim/vm"
)

// runPager shows the execution trace one screen at a time. It is a
// minimal viewer, not a debugger: no breakpoints, no stepping, just
// scrolling through what already ran.
func runPager(machine *vm.Machine) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("pager: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("pager: %w", err)
	}
	defer screen.Fini()

	style := tcell.StyleDefault
	top := 0

	draw := func() {
		screen.Clear()
		_, height := screen.Size()
		row := 0
		drawLine(screen, row, style.Bold(true), "PC     INSTRUCTION              REGISTERS")
		row++
		for i := top; i < len(machine.Trace) && row < height-1; i++ {
			entry := machine.Trace[i]
			line := fmt.Sprintf("%-6d %-24s %s", entry.PC, entry.InstText, formatRegs(entry.Regs))
			drawLine(screen, row, style, line)
			row++
		}
		drawLine(screen, height-1, style.Bold(true), "arrows/j/k scroll, q quits")
		screen.Show()
	}

	draw()
	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
			draw()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Rune() == 'q':
				return nil
			case ev.Key() == tcell.KeyDown, ev.Rune() == 'j':
				if top < len(machine.Trace)-1 {
					top++
				}
				draw()
			case ev.Key() == tcell.KeyUp, ev.Rune() == 'k':
				if top > 0 {
					top--
				}
				draw()
			}
		}
	}
}

func drawLine(screen tcell.Screen, row int, style tcell.Style, text string) {
	for col, r := range text {
		screen.SetContent(col, row, r, nil, style)
	}
}
