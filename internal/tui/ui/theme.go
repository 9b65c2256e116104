package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the colors shared by the chat widgets.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TitleColor       tcell.Color
	MenuKeyColor     tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TitleColor:       tcell.ColorFuchsia,
		MenuKeyColor:     tcell.ColorDodgerBlue,
	}
}
