package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Bybit   BybitConfig   `yaml:"bybit"`
	Binance BinanceConfig `yaml:"binance"`
	Trading TradingConfig `yaml:"trading"`
	Scanner ScannerConfig `yaml:"scanner"`
	Filters FiltersConfig `yaml:"filters"`
	Signal  SignalConfig  `yaml:"signal"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// BybitConfig содержит настройки подключения к Bybit
type BybitConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// BinanceConfig содержит настройки резервного подключения к Binance
type BinanceConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig содержит настройки отслеживаемых рынков
type TradingConfig struct {
	Symbols        []string `yaml:"symbols"`
	Interval       string   `yaml:"interval"`       // основной таймфрейм
	ShortInterval  string   `yaml:"short_interval"` // короткий таймфрейм
	CandleLimit    int      `yaml:"candle_limit"`
	OrderBookDepth int      `yaml:"orderbook_depth"`
	TradeLimit     int      `yaml:"trade_limit"`
}

// ScannerConfig содержит настройки цикла сканирования
type ScannerConfig struct {
	IntervalSeconds      int  `yaml:"interval_seconds"`
	Concurrency          int  `yaml:"concurrency"`
	CycleDeadlineSeconds int  `yaml:"cycle_deadline_seconds"`
	BufferCapacity       int  `yaml:"buffer_capacity"`
	Running              bool `yaml:"running"`
}

// FilterConfig общие настройки одного фильтра
type FilterConfig struct {
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight"`
}

// FiltersConfig содержит настройки всех фильтров
type FiltersConfig struct {
	Breakout struct {
		FilterConfig `yaml:",inline"`
		Window       int `yaml:"window"`
	} `yaml:"breakout"`

	RangeBreak struct {
		FilterConfig `yaml:",inline"`
		ThresholdPct float64 `yaml:"threshold_pct"`
	} `yaml:"range_break"`

	CandleBody struct {
		FilterConfig `yaml:",inline"`
		MinBodyRatio float64 `yaml:"min_body_ratio"`
	} `yaml:"candle_body"`

	VolumeSurge struct {
		FilterConfig `yaml:",inline"`
		Multiplier   float64 `yaml:"multiplier"`
		MAWindow     int     `yaml:"ma_window"`
	} `yaml:"volume_surge"`

	VolumeDivergence struct {
		FilterConfig `yaml:",inline"`
	} `yaml:"volume_divergence"`

	CVD struct {
		FilterConfig    `yaml:",inline"`
		BuyPressureHigh float64 `yaml:"buy_pressure_high"`
		BuyPressureLow  float64 `yaml:"buy_pressure_low"`
	} `yaml:"cvd"`

	Imbalance struct {
		FilterConfig `yaml:",inline"`
		Threshold    float64 `yaml:"threshold"`
		Depth        int     `yaml:"depth"`
	} `yaml:"imbalance"`

	Spoofing struct {
		FilterConfig   `yaml:",inline"`
		FarPricePct    float64 `yaml:"far_price_pct"`
		FarVolumeRatio float64 `yaml:"far_volume_ratio"`
	} `yaml:"spoofing"`

	Spread struct {
		FilterConfig `yaml:",inline"`
		MaxPct       float64 `yaml:"max_pct"`
	} `yaml:"spread"`

	Whale struct {
		FilterConfig  `yaml:",inline"`
		NotionalUSD   float64 `yaml:"notional_usd"`
		WindowSeconds int     `yaml:"window_seconds"`
	} `yaml:"whale"`

	Trend struct {
		FilterConfig `yaml:",inline"`
		EMAShort     int `yaml:"ema_short"`
		EMALong      int `yaml:"ema_long"`
	} `yaml:"trend"`

	RSI struct {
		FilterConfig `yaml:",inline"`
		Period       int     `yaml:"period"`
		Overbought   float64 `yaml:"overbought"`
		Oversold     float64 `yaml:"oversold"`
	} `yaml:"rsi"`

	NewCoin struct {
		FilterConfig `yaml:",inline"`
		MinAgeDays   int `yaml:"min_age_days"`
	} `yaml:"new_coin"`

	Liquidity struct {
		FilterConfig   `yaml:",inline"`
		RatioThreshold float64 `yaml:"ratio_threshold"`
		RangePct       float64 `yaml:"range_pct"`
	} `yaml:"liquidity"`
}

// SignalConfig пороговые значения и параметры сигналов
type SignalConfig struct {
	StrengthThreshold float64   `yaml:"strength_threshold"`
	CooldownSeconds   int       `yaml:"cooldown_seconds"`
	TPMultipliers     []float64 `yaml:"tp_multipliers"`
	TPDistribution    []float64 `yaml:"tp_distribution"`
	PumpThreshold     float64   `yaml:"pump_threshold"`
	DumpThreshold     float64   `yaml:"dump_threshold"`
}

// StorageConfig настройки хранения сигналов
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Default возвращает конфигурацию с порогами по умолчанию
func Default() *Config {
	cfg := &Config{}

	cfg.Bybit.BaseURL = "https://api.bybit.com"
	cfg.Bybit.TimeoutSeconds = 10
	cfg.Bybit.RequestsPerSec = 4

	cfg.Trading.Symbols = []string{
		"BTCUSDT", "ETHUSDT", "ADAUSDT", "BNBUSDT", "XRPUSDT",
		"SOLUSDT", "DOTUSDT", "DOGEUSDT", "AVAXUSDT", "MATICUSDT",
		"LINKUSDT", "LTCUSDT", "BCHUSDT", "EOSUSDT", "TRXUSDT",
		"ARBUSDT", "OPUSDT", "ATOMUSDT", "NEARUSDT", "APTUSDT",
	}
	cfg.Trading.Interval = "5"
	cfg.Trading.ShortInterval = "1"
	cfg.Trading.CandleLimit = 50
	cfg.Trading.OrderBookDepth = 25
	cfg.Trading.TradeLimit = 100

	cfg.Scanner.IntervalSeconds = 60
	cfg.Scanner.Concurrency = 4
	cfg.Scanner.CycleDeadlineSeconds = 55
	cfg.Scanner.BufferCapacity = 50
	cfg.Scanner.Running = true

	f := &cfg.Filters
	f.Breakout.Enabled = true
	f.Breakout.Weight = 10
	f.Breakout.Window = 20
	f.RangeBreak.Enabled = true
	f.RangeBreak.Weight = 10
	f.RangeBreak.ThresholdPct = 1.2
	f.CandleBody.Enabled = true
	f.CandleBody.Weight = 10
	f.CandleBody.MinBodyRatio = 0.6
	f.VolumeSurge.Enabled = true
	f.VolumeSurge.Weight = 15
	f.VolumeSurge.Multiplier = 2.5
	f.VolumeSurge.MAWindow = 5
	f.VolumeDivergence.Enabled = true
	f.VolumeDivergence.Weight = 5
	f.CVD.Enabled = true
	f.CVD.Weight = 5
	f.CVD.BuyPressureHigh = 60
	f.CVD.BuyPressureLow = 40
	f.Imbalance.Enabled = true
	f.Imbalance.Weight = 10
	f.Imbalance.Threshold = 0.4
	f.Imbalance.Depth = 10
	f.Spoofing.Enabled = true
	f.Spoofing.Weight = 3
	f.Spoofing.FarPricePct = 2.0
	f.Spoofing.FarVolumeRatio = 0.3
	f.Spread.Enabled = true
	f.Spread.Weight = 5
	f.Spread.MaxPct = 0.3
	f.Whale.Enabled = true
	f.Whale.Weight = 15
	f.Whale.NotionalUSD = 15000
	f.Whale.WindowSeconds = 300
	f.Trend.Enabled = true
	f.Trend.Weight = 5
	f.Trend.EMAShort = 9
	f.Trend.EMALong = 21
	f.RSI.Enabled = true
	f.RSI.Weight = 3
	f.RSI.Period = 14
	f.RSI.Overbought = 75
	f.RSI.Oversold = 25
	f.NewCoin.Enabled = true
	f.NewCoin.Weight = 2
	f.NewCoin.MinAgeDays = 7
	f.Liquidity.Enabled = true
	f.Liquidity.Weight = 5
	f.Liquidity.RatioThreshold = 3.0
	f.Liquidity.RangePct = 1.0

	cfg.Signal.StrengthThreshold = 70
	cfg.Signal.CooldownSeconds = 300
	cfg.Signal.TPMultipliers = []float64{1.5, 3.0, 5.0, 7.5}
	cfg.Signal.TPDistribution = []float64{40, 60, 80, 100}
	cfg.Signal.PumpThreshold = 5.0
	cfg.Signal.DumpThreshold = -5.0

	cfg.Log.Level = "info"
	cfg.Log.Console = true

	return cfg
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	return cfg, nil
}

// Validate проверяет конфигурацию. Любая ошибка фатальна на старте:
// цикл сканирования с некорректными порогами не запускается.
func (c *Config) Validate() error {
	var errs error

	if len(c.Trading.Symbols) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("trading.symbols: список символов пуст"))
	}
	if c.Scanner.IntervalSeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("scanner.interval_seconds: должен быть положительным, получено %d", c.Scanner.IntervalSeconds))
	}
	if c.Scanner.Concurrency <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("scanner.concurrency: должен быть положительным, получено %d", c.Scanner.Concurrency))
	}
	if c.Scanner.CycleDeadlineSeconds <= 0 || c.Scanner.CycleDeadlineSeconds > c.Scanner.IntervalSeconds {
		errs = multierr.Append(errs, fmt.Errorf("scanner.cycle_deadline_seconds: должен быть в пределах (0, interval], получено %d", c.Scanner.CycleDeadlineSeconds))
	}
	if c.Scanner.BufferCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("scanner.buffer_capacity: должен быть положительным, получено %d", c.Scanner.BufferCapacity))
	}
	if c.Filters.Breakout.Window > c.Scanner.BufferCapacity {
		errs = multierr.Append(errs, fmt.Errorf("filters.breakout.window: окно %d больше емкости буфера %d", c.Filters.Breakout.Window, c.Scanner.BufferCapacity))
	}
	if c.Filters.VolumeSurge.MAWindow+1 >= c.Scanner.BufferCapacity {
		errs = multierr.Append(errs, fmt.Errorf("filters.volume_surge.ma_window: окно %d не помещается в буфер емкости %d", c.Filters.VolumeSurge.MAWindow, c.Scanner.BufferCapacity))
	}

	if c.Signal.StrengthThreshold < 0 || c.Signal.StrengthThreshold > 100 {
		errs = multierr.Append(errs, fmt.Errorf("signal.strength_threshold: должен быть в [0,100], получено %.1f", c.Signal.StrengthThreshold))
	}
	if c.Signal.CooldownSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("signal.cooldown_seconds: не может быть отрицательным"))
	}
	if len(c.Signal.TPMultipliers) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("signal.tp_multipliers: список пуст"))
	}
	for i, m := range c.Signal.TPMultipliers {
		if m <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("signal.tp_multipliers[%d]: должен быть положительным, получено %.2f", i, m))
		}
		if i > 0 && m <= c.Signal.TPMultipliers[i-1] {
			errs = multierr.Append(errs, fmt.Errorf("signal.tp_multipliers: значения должны строго возрастать, %.2f после %.2f", m, c.Signal.TPMultipliers[i-1]))
		}
	}
	if len(c.Signal.TPDistribution) != len(c.Signal.TPMultipliers) {
		errs = multierr.Append(errs, fmt.Errorf("signal.tp_distribution: длина %d не совпадает с tp_multipliers %d", len(c.Signal.TPDistribution), len(c.Signal.TPMultipliers)))
	}
	for i, p := range c.Signal.TPDistribution {
		if p <= 0 || p > 100 {
			errs = multierr.Append(errs, fmt.Errorf("signal.tp_distribution[%d]: должен быть в (0,100], получено %.1f", i, p))
		}
		if i > 0 && p <= c.Signal.TPDistribution[i-1] {
			errs = multierr.Append(errs, fmt.Errorf("signal.tp_distribution: значения должны строго возрастать"))
		}
	}

	for _, check := range []struct {
		name  string
		value float64
	}{
		{"filters.range_break.threshold_pct", c.Filters.RangeBreak.ThresholdPct},
		{"filters.volume_surge.multiplier", c.Filters.VolumeSurge.Multiplier},
		{"filters.imbalance.threshold", c.Filters.Imbalance.Threshold},
		{"filters.spread.max_pct", c.Filters.Spread.MaxPct},
		{"filters.whale.notional_usd", c.Filters.Whale.NotionalUSD},
		{"filters.liquidity.ratio_threshold", c.Filters.Liquidity.RatioThreshold},
	} {
		if check.value <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: должен быть положительным, получено %.2f", check.name, check.value))
		}
	}

	if c.Filters.RSI.Overbought <= c.Filters.RSI.Oversold {
		errs = multierr.Append(errs, fmt.Errorf("filters.rsi: overbought %.1f должен быть больше oversold %.1f", c.Filters.RSI.Overbought, c.Filters.RSI.Oversold))
	}
	if c.Filters.RSI.Period <= 1 {
		errs = multierr.Append(errs, fmt.Errorf("filters.rsi.period: должен быть больше 1, получено %d", c.Filters.RSI.Period))
	}
	if c.Filters.Trend.EMAShort >= c.Filters.Trend.EMALong {
		errs = multierr.Append(errs, fmt.Errorf("filters.trend: ema_short %d должен быть меньше ema_long %d", c.Filters.Trend.EMAShort, c.Filters.Trend.EMALong))
	}
	if c.Filters.CVD.BuyPressureHigh <= c.Filters.CVD.BuyPressureLow {
		errs = multierr.Append(errs, fmt.Errorf("filters.cvd: buy_pressure_high %.1f должен быть больше buy_pressure_low %.1f", c.Filters.CVD.BuyPressureHigh, c.Filters.CVD.BuyPressureLow))
	}

	return errs
}

// ScanInterval возвращает период цикла сканирования
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// CycleDeadline возвращает предельное время одного цикла
func (c *Config) CycleDeadline() time.Duration {
	return time.Duration(c.Scanner.CycleDeadlineSeconds) * time.Second
}

// Cooldown возвращает окно тишины после сигнала
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Signal.CooldownSeconds) * time.Second
}
