package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"

	"github.com/flexring/ringbridge/helpers"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

const (
	DefaultUDPAddress = "127.0.0.1:9000"
	DefaultOSCAddress = "/avatar/parameters/ringcon_flex"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	UDPAddress string `hcl:"udp_address"`
	OSCAddress string `hcl:"osc_address"`

	InMin    int `hcl:"in_min"`
	InMax    int `hcl:"in_max"`
	InCenter int `hcl:"in_center"`

	OutMin  float64 `hcl:"out_min"`
	OutMax  float64 `hcl:"out_max"`
	OutIdle float64 `hcl:"out_idle"`

	LogDebug bool `hcl:"log_debug"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) setDefaults() {
	c.UDPAddress = DefaultUDPAddress
	c.OSCAddress = DefaultOSCAddress
	c.InMin = 7
	c.InMax = 24
	c.InCenter = 15
	c.OutMin = 0.5
	c.OutMax = 1.0
	c.OutIdle = 0.0
}

// Configuration is the wire form sent to the agent worker.
func (c *Config) Configuration() msg.Configuration {
	return msg.Configuration{
		UDPAddress: c.UDPAddress,
		OSCAddress: c.OSCAddress,
		InMin:      byte(c.InMin),
		InMax:      byte(c.InMax),
		InCenter:   byte(c.InCenter),
		OutMin:     float32(c.OutMin),
		OutMax:     float32(c.OutMax),
		OutIdle:    float32(c.OutIdle),
	}
}

func (c *Config) validate(log *log2.Log) error {
	errs := make([]error, 0, 8)
	if c.OSCAddress == "" || c.OSCAddress[0] != '/' {
		errs = append(errs, errors.NotValidf("config osc_address=%s must start with /", c.OSCAddress))
	}
	if c.UDPAddress == "" {
		errs = append(errs, errors.NotValidf("config udp_address empty"))
	}
	for _, x := range []struct {
		name  string
		value int
	}{{"in_min", c.InMin}, {"in_max", c.InMax}, {"in_center", c.InCenter}} {
		if x.value < 0 || x.value > 255 {
			errs = append(errs, errors.NotValidf("config %s=%d outside sensor range 0..255", x.name, x.value))
		}
	}
	if c.InMin > c.InMax {
		errs = append(errs, errors.NotValidf("config input range in_min=%d > in_max=%d", c.InMin, c.InMax))
	} else if c.InCenter <= c.InMin || c.InCenter >= c.InMax {
		// mapping clamps the output, so a center outside the range is odd but workable
		log.Errorf("config in_center=%d outside in_min=%d..in_max=%d, output will stick to one edge", c.InCenter, c.InMin, c.InMax)
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
			return
		}
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	c.setDefaults()
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return c, err
	}
	return c, c.validate(log)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
