package commands

import (
	"fmt"
	"reflect"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/softgpu/engine"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show adapter, limits and features",
	Long: `Display the software adapter, the selected shader engine, the static
device limits and the supported feature names.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type limitValue struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

type infoReport struct {
	Adapter  string       `json:"adapter"`
	Vendor   string       `json:"vendor"`
	Type     string       `json:"type"`
	Engine   string       `json:"engine"`
	Engines  []string     `json:"engines"`
	Limits   []limitValue `json:"limits"`
	Features []string     `json:"features"`
}

func runInfo(cmd *cobra.Command, _ []string) error {
	device, err := openDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	info := device.Adapter().Info()
	report := infoReport{
		Adapter:  info.Name,
		Vendor:   info.Vendor,
		Type:     info.DeviceType.String(),
		Engine:   device.Engine().Name(),
		Engines:  engine.Available(),
		Limits:   limitValues(device.Limits()),
		Features: device.Features().Names(),
	}

	w := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(w, report)
	}

	p := printer()
	fmt.Fprintf(w, "Adapter:  %s (%s, %s)\n", report.Adapter, report.Vendor, report.Type)
	fmt.Fprintf(w, "Engine:   %s\n", report.Engine)
	fmt.Fprintf(w, "Engines:  %v\n\n", report.Engines)

	fmt.Fprintln(w, "Limits:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, l := range report.Limits {
		p.Fprintf(tw, "  %s\t%d\t\n", l.Name, l.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nFeatures:")
	for _, f := range report.Features {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}

// limitValues lists every numeric field of a limits struct in declaration order.
func limitValues(limits any) []limitValue {
	v := reflect.ValueOf(limits)
	t := v.Type()
	out := make([]limitValue, 0, t.NumField())
	for i := range t.NumField() {
		f := v.Field(i)
		switch f.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, limitValue{Name: t.Field(i).Name, Value: f.Uint()})
		}
	}
	return out
}
