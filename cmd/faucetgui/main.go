package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/ligun0805/faucet-sender/internal/app"
	"github.com/ligun0805/faucet-sender/internal/config"
)

// runner tracks the single action allowed to run at a time.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *runner) start() (context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	return ctx, true
}

func (r *runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *runner) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func main() {
	hideConsoleWindow()

	a := fyneapp.New()
	curTheme := makeTheme("dark")
	a.Settings().SetTheme(curTheme)

	w := a.NewWindow("Faucet Sender")
	w.Resize(fyne.NewSize(1100, 720))

	logs := newLogPane()
	status := widget.NewLabel("Idle")
	progress := widget.NewProgressBarInfinite()
	progress.Stop()
	progress.Hide()

	cfgEntry := widget.NewEntry()
	cfgEntry.SetPlaceHolder("config.json in the working directory")
	browse := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() {
		d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			_ = rc.Close()
			cfgEntry.SetText(rc.URI().Path())
		}, w)
		d.SetFilter(storage.NewExtensionFileFilter([]string{".json", ".yaml", ".yml", ".toml"}))
		d.Show()
	})

	run := &runner{}
	var buttons []*widget.Button
	setBusy := func(busy bool) {
		for _, b := range buttons {
			if busy {
				b.Disable()
			} else {
				b.Enable()
			}
		}
		if busy {
			progress.Show()
			progress.Start()
		} else {
			progress.Stop()
			progress.Hide()
		}
	}

	newApp := func() *app.App {
		ap := app.New(cfgEntry.Text, logs, logs)
		ap.NoColor = true
		return ap
	}

	for _, act := range newApp().Actions() {
		key, title := act.Key, act.Title
		btn := widget.NewButton(title, func() {
			ctx, ok := run.start()
			if !ok {
				return
			}
			setBusy(true)
			status.SetText(title + "…")
			fmt.Fprintf(logs, "\n=== %s ===\n", title)
			go func() {
				defer run.done()
				var err error
				for _, x := range newApp().Actions() {
					if x.Key == key {
						err = x.Run(ctx)
					}
				}
				switch {
				case err == nil:
					status.SetText(title + ": done")
				case errors.Is(err, context.Canceled):
					status.SetText(title + ": stopped")
				default:
					status.SetText(title + ": failed")
					fmt.Fprintf(logs, "ERROR: %v\n", err)
					if errors.Is(err, config.ErrInvalid) {
						dialog.ShowError(err, w)
					}
				}
				setBusy(false)
			}()
		})
		buttons = append(buttons, btn)
	}

	stopBtn := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), run.stop)
	clearBtn := widget.NewButtonWithIcon("Clear log", theme.ContentClearIcon(), logs.Clear)

	themeSelect := widget.NewSelect([]string{"Dark", "Light"}, func(s string) {
		mode := "dark"
		if s == "Light" {
			mode = "light"
		}
		curTheme = makeTheme(mode)
		a.Settings().SetTheme(curTheme)
	})
	themeSelect.SetSelected("Dark")

	actionBox := container.NewVBox()
	for _, b := range buttons {
		actionBox.Add(b)
	}
	actionBox.Add(widget.NewSeparator())
	actionBox.Add(stopBtn)
	actionBox.Add(clearBtn)

	top := container.NewBorder(nil, nil, widget.NewLabel("Config:"), container.NewHBox(browse, themeSelect), cfgEntry)
	bottom := container.NewBorder(nil, nil, nil, progress, status)
	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	center := container.NewStack(bg, logs.scroll)

	w.SetContent(container.NewBorder(top, bottom, actionBox, nil, center))
	w.SetOnClosed(run.stop)
	w.ShowAndRun()
}
