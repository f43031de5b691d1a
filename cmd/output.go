package cmd

import (
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/melodyplay/internal/audio"
	"github.com/icco/melodyplay/internal/config"
	"github.com/icco/melodyplay/internal/midiout"
	"github.com/icco/melodyplay/internal/playback"
)

func noopClose() error { return nil }

// openLoader returns the instrument loader for the configured output and a
// function releasing the port or driver behind it.
func openLoader(cfg *config.Config, logger *log.Logger) (playback.Loader, func() error, error) {
	switch cfg.Output {
	case config.OutputSynth:
		return audio.NewLoader(audio.Options{
			MasterVolume: cfg.Volume,
			ReverbMix:    cfg.Reverb.Mix,
			ReverbDecay:  cfg.Reverb.Decay,
		}, logger.WithPrefix("audio")), noopClose, nil

	case config.OutputMIDI:
		out, err := midi.FindOutPort(cfg.MIDIPort)
		if err != nil {
			return nil, nil, fault.Wrap(err,
				fmsg.WithDesc("find midi port",
					"No MIDI output named \""+cfg.MIDIPort+"\". Available: "+availablePorts()),
				ftag.With(ftag.NotFound))
		}
		l := midiout.NewLoader(out, playback.RealClock{}, logger.WithPrefix("midi"))
		return l, l.Close, nil

	case config.OutputVirtual:
		// Create the rtmidi driver
		driver, err := rtmididrv.New()
		if err != nil {
			return nil, nil, fault.Wrap(err,
				fmsg.WithDesc("rtmidi driver", "Failed to initialize MIDI driver."),
				ftag.With(ftag.Internal))
		}
		out, err := driver.OpenVirtualOut(cfg.VirtualPortName)
		if err != nil {
			driver.Close()
			return nil, nil, fault.Wrap(err,
				fmsg.WithDesc("virtual port", "Failed to create virtual MIDI port."),
				ftag.With(ftag.Internal))
		}
		l := midiout.NewLoader(out, playback.RealClock{}, logger.WithPrefix("midi"))
		closeAll := func() error {
			err := l.Close()
			driver.Close()
			return err
		}
		return l, closeAll, nil

	default:
		return playback.SilentLoader{}, noopClose, nil
	}
}

func availablePorts() string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
