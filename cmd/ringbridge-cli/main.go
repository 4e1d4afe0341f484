package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"

	"github.com/flexring/ringbridge/helpers/cli"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/osc"
	"github.com/flexring/ringbridge/state"
)

const usage = `syntax: commands separated by whitespace
(main)
- fN       send flex byte N (0..255), show mapped value
- sweep    send every flex byte in_min..in_max
- sN       pause N milliseconds

(meta)
- show     print active configuration
- log=yes  enable debug logging
- log=no   disable debug logging
`

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "ringbridge.hcl", "")
	cmdline.Parse(os.Args[1:]) //nolint:errcheck

	log.SetFlags(log2.LInteractiveFlags)

	fs := state.NewOsFullReader(".")
	config := state.MustReadConfig(log, fs, *flagConfig)

	enc, err := osc.NewEncoder(log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer enc.Close()
	if err = enc.Configure(config.Configuration()); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	log.Infof("sending to udp=%s path=%s", config.UDPAddress, config.OSCAddress)

	cli.MainLoop("ringbridge-cli", newExecutor(config, enc), newCompleter())
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		prompt.Suggest{Text: "fN", Description: "send flex byte N"},
		prompt.Suggest{Text: "sweep", Description: "send every byte in_min..in_max"},
		prompt.Suggest{Text: "sN", Description: "pause for N ms"},
		prompt.Suggest{Text: "show", Description: "print active configuration"},
		prompt.Suggest{Text: "log=yes", Description: "debug logging on"},
		prompt.Suggest{Text: "log=no", Description: "debug logging off"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(config *state.Config, enc *osc.Encoder) func(string) {
	return func(line string) {
		for _, word := range strings.Split(line, " ") {
			word = strings.TrimSpace(word)
			if word == "" {
				continue
			}
			if err := execWord(config, enc, word); err != nil {
				log.Errorf(errors.ErrorStack(err))
				return
			}
		}
	}
}

func execWord(config *state.Config, enc *osc.Encoder, word string) error {
	switch {
	case word == "help":
		log.Infof(usage)
		return nil

	case word == "show":
		log.Infof("%s", config.Configuration().String())
		return nil

	case word == "log=yes":
		log.SetLevel(log2.LDebug)
		return nil

	case word == "log=no":
		log.SetLevel(log2.LError)
		return nil

	case word == "sweep":
		for i := config.InMin; i <= config.InMax; i++ {
			if err := sendFlex(enc, byte(i)); err != nil {
				return err
			}
			time.Sleep(50 * time.Millisecond)
		}
		return nil

	case word[0] == 'f':
		i, err := strconv.ParseUint(word[1:], 10, 8)
		if err != nil {
			return errors.Annotatef(err, "flex command word=%s", word)
		}
		return sendFlex(enc, byte(i))

	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return errors.Annotatef(err, "sleep command word=%s", word)
		}
		time.Sleep(time.Duration(i) * time.Millisecond)
		return nil
	}
	return errors.Errorf("unknown command word=%s, try help", word)
}

func sendFlex(enc *osc.Encoder, flex byte) error {
	if err := enc.Send(flex); err != nil {
		return errors.Annotatef(err, "flex=%d", flex)
	}
	log.Infof("> flex=%3d value=%.4f", flex, enc.Map(flex))
	return nil
}
