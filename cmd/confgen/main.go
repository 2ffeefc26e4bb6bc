package main

// confgen собирает values-файл под выбранный пресет риска:
//
//	confgen -preset safe -out configs/values_local.yaml
//
// За основу берётся configs/.margin_guard.base.yaml, пресет переопределяет блок риска.

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v2"

	"github.com/spf13/viper"

	"margin_guard/internal/models"
)

const baseConfigName = ".margin_guard.base"

func generateValues(base *viper.Viper, presetKey string) ([]byte, error) {
	p, ok := models.Presets[presetKey]
	if !ok {
		return nil, errors.Errorf("unknown preset %q, known: %v", presetKey, presetKeys())
	}

	var rs models.RiskManagementSettings
	p.Apply(&rs)

	base.Set("break_even_trigger_pct", rs.BreakEvenTriggerPct)
	base.Set("break_even_buffer_ticks", rs.BreakEvenBufferTicks)
	base.Set("trailing_stop_trigger_pct", rs.TrailingStopTriggerPct)
	base.Set("trailing_stop_distance_ticks", rs.TrailingStopDistanceTicks)
	base.Set("max_risk_per_trade_pct", rs.MaxRiskPerTradePct)
	base.Set("enable_break_even", rs.EnableBreakEvenProtection)
	base.Set("enable_trailing", rs.EnableTrailingStops)

	bs, err := yaml.Marshal(base.AllSettings())
	if err != nil {
		return nil, errors.Wrap(err, "marshal config to yaml")
	}
	return bs, nil
}

func presetKeys() []string {
	keys := make([]string, 0, len(models.Presets))
	for k := range models.Presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func main() {
	preset := flag.String("preset", "mid", "ключ пресета риска")
	out := flag.String("out", "configs/values_local.yaml", "куда писать итоговый конфиг")
	flag.Parse()

	viper.SetConfigName(baseConfigName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	content, err := generateValues(viper.GetViper(), *preset)
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile(*out, content, 0o644); err != nil {
		panic(errors.Wrap(err, "write values file"))
	}
	fmt.Printf("%s written (preset %s)\n", *out, *preset)
	fmt.Println("done")
}
