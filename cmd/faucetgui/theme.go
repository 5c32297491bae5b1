package main

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// appTheme pins the variant so the choice in the window wins over the OS setting.
type appTheme struct{ variant fyne.ThemeVariant }

func makeTheme(mode string) fyne.Theme {
	if mode == "light" {
		return &appTheme{variant: theme.VariantLight}
	}
	return &appTheme{variant: theme.VariantDark}
}

func (t *appTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	dark := t.variant == theme.VariantDark
	switch n {
	case theme.ColorNameForeground:
		if dark {
			return color.NRGBA{240, 240, 240, 255}
		}
		return color.NRGBA{0, 0, 0, 255}
	case theme.ColorNameDisabled:
		// the log pane is a disabled entry and must stay readable
		if dark {
			return color.NRGBA{210, 210, 210, 255}
		}
		return color.NRGBA{60, 60, 60, 255}
	}
	return theme.DefaultTheme().Color(n, t.variant)
}

func (t *appTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (t *appTheme) Icon(n fyne.ThemeIconName) fyne.Resource { return theme.DefaultTheme().Icon(n) }
func (t *appTheme) Size(n fyne.ThemeSizeName) float32      { return theme.DefaultTheme().Size(n) }
