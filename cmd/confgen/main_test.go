package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v2"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("db_dsn", "postgres://localhost/margin_guard")
	v.Set("service", map[string]any{"health_addr": ":8080"})
	v.Set("fallback_tick_size", 0.25)
	return v
}

func TestGenerateValuesSafePreset(t *testing.T) {
	content, err := generateValues(baseViper(), "safe")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, yaml.Unmarshal(content, &out))

	// yaml кодирует целую вещественную как целое, сравниваем по значению
	assert.EqualValues(t, 1.0, out["break_even_trigger_pct"])
	assert.EqualValues(t, 2, out["break_even_buffer_ticks"])
	assert.EqualValues(t, 2.0, out["trailing_stop_trigger_pct"])
	assert.EqualValues(t, 3, out["trailing_stop_distance_ticks"])
	assert.EqualValues(t, 1.0, out["max_risk_per_trade_pct"])
	assert.Equal(t, true, out["enable_break_even"])
	assert.Equal(t, true, out["enable_trailing"])

	// база проходит в итоговый файл нетронутой
	assert.Equal(t, "postgres://localhost/margin_guard", out["db_dsn"])
	assert.EqualValues(t, 0.25, out["fallback_tick_size"])
}

func TestGenerateValuesAggrDisablesTrailing(t *testing.T) {
	content, err := generateValues(baseViper(), "aggr")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, yaml.Unmarshal(content, &out))

	assert.Equal(t, false, out["enable_trailing"])
	assert.EqualValues(t, 0, out["break_even_buffer_ticks"])
	assert.EqualValues(t, 3.0, out["max_risk_per_trade_pct"])
}

func TestGenerateValuesUnknownPreset(t *testing.T) {
	_, err := generateValues(baseViper(), "yolo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown preset "yolo"`)
	assert.Contains(t, err.Error(), "aggr")
}

func TestPresetKeysSorted(t *testing.T) {
	assert.Equal(t, []string{"aggr", "mid", "safe"}, presetKeys())
}
