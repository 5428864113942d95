package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

type Config struct {
	ServerAddress string `mapstructure:"server_address"`
	Environment   string `mapstructure:"environment"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Report    ReportConfig    `mapstructure:"report"`

	// PaymentLists preserve file order; the report walks them in order.
	PaymentLists []PaymentList `mapstructure:"payment_lists"`

	// ExchangeRates maps a currency code to its rate into the account
	// currency, used when a payment is configured with a foreign currency.
	ExchangeRates map[string]float64 `mapstructure:"exchange_rates"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Params   string `mapstructure:"params"`
}

type MigrationConfig struct {
	Dir string `mapstructure:"dir"`
}

type ProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	APIBaseURL   string `mapstructure:"api_base_url"`
	AuthBaseURL  string `mapstructure:"auth_base_url"`
	TokenPath    string `mapstructure:"token_path"`
}

type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	UserKey string `mapstructure:"user_key"`
}

// ReportConfig holds the salary-cycle and pot-transfer settings for the
// payments-due report.
type ReportConfig struct {
	Account           string      `mapstructure:"account"`
	SalaryAccount     string      `mapstructure:"salary_account"`
	SalaryDescription StringList  `mapstructure:"salary_description"`
	SalaryMinimum     float64     `mapstructure:"salary_minimum"`
	SalaryPaymentDay  int         `mapstructure:"salary_payment_day"`
	BankHolidays      bool        `mapstructure:"bank_holidays"`
	ExemptDates       []time.Time `mapstructure:"exempt_dates"`

	Pot                  string `mapstructure:"pot"`
	AutoDeposit          bool   `mapstructure:"auto_deposit"`
	AutoWithdraw         bool   `mapstructure:"auto_withdraw"`
	TransferDelayMinutes int    `mapstructure:"transfer_delay_minutes"`
	TrackerDir           string `mapstructure:"tracker_dir"`

	FlexPaymentDay    int `mapstructure:"flex_payment_day"`
	FlexSettlementDay int `mapstructure:"flex_settlement_day"`
}

// PaymentList is one configured group of payments sharing a kind.
type PaymentList struct {
	Name     string          `mapstructure:"name"`
	Type     string          `mapstructure:"type"`
	Payments []PaymentConfig `mapstructure:"payments"`
}

// PaymentConfig is the per-payment schema. All keys are optional in YAML;
// Validate reports the combinations that do not make sense for the kind.
type PaymentConfig struct {
	Name          string            `mapstructure:"name"`
	Amount        float64           `mapstructure:"amount"`
	Months        int               `mapstructure:"months"`
	Desc          StringList        `mapstructure:"desc"`
	StartDate     *time.Time        `mapstructure:"start_date"`
	RenewDate     *time.Time        `mapstructure:"renew_date"`
	Renewal       *RenewalConfig    `mapstructure:"renewal"`
	YearlyMonth   int               `mapstructure:"yearly_month"`
	YearlyDay     int               `mapstructure:"yearly_day"`
	ExcludeMonths []int             `mapstructure:"exclude_months"`
	Fixed         bool              `mapstructure:"fixed"`
	Metadata      map[string]string `mapstructure:"metadata"`
	OtherAccounts []string          `mapstructure:"other_accounts"`
	Currency      string            `mapstructure:"currency"`
	ReserveAmount float64           `mapstructure:"reserve_amount"`
	SinglePayment bool              `mapstructure:"single_payment"`
	IsYearly      bool              `mapstructure:"is_yearly"`
	CreditLimit   float64           `mapstructure:"credit_limit"`
	DueAfter      *time.Time        `mapstructure:"due_after"`
	PaymentDay    int               `mapstructure:"payment_day"`
}

type RenewalConfig struct {
	Date         time.Time `mapstructure:"date"`
	Amount       float64   `mapstructure:"amount"`
	FirstPayment float64   `mapstructure:"first_payment"`
}

// StringList accepts either a single YAML string or a list of strings.
type StringList []string

// Annual reports whether the payment runs on a yearly cadence rather than
// the monthly salary cycle.
func (p *PaymentConfig) Annual() bool {
	return p.IsYearly || (p.YearlyMonth > 0 && p.YearlyDay > 0)
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom reads and validates the YAML configuration. An empty path
// uses the default search locations.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.potwatch")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(c *Config) {
	if c.ServerAddress == "" {
		c.ServerAddress = ":8080"
	}
	if c.Migration.Dir == "" {
		c.Migration.Dir = "migrations"
	}
	if c.Database.Params == "" {
		c.Database.Params = "parseTime=true"
	}
	if c.Provider.APIBaseURL == "" {
		c.Provider.APIBaseURL = "https://api.monzo.com"
	}
	if c.Provider.AuthBaseURL == "" {
		c.Provider.AuthBaseURL = "https://auth.monzo.com"
	}
	if c.Report.TransferDelayMinutes == 0 {
		c.Report.TransferDelayMinutes = 30
	}
	if c.Report.FlexSettlementDay == 0 {
		c.Report.FlexSettlementDay = 16
	}
	if c.Report.TrackerDir == "" {
		c.Report.TrackerDir = "."
	}
}

// Validate checks the whole schema at once and reports every problem
// together rather than failing on first access.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Database.Host == "" {
		result = multierror.Append(result, fmt.Errorf("database.host is required"))
	}
	if c.Database.Name == "" {
		result = multierror.Append(result, fmt.Errorf("database.name is required"))
	}
	if c.Report.Account == "" {
		result = multierror.Append(result, fmt.Errorf("report.account is required"))
	}
	if len(c.Report.SalaryDescription) == 0 {
		result = multierror.Append(result, fmt.Errorf("report.salary_description is required"))
	}
	if c.Report.SalaryPaymentDay < 1 || c.Report.SalaryPaymentDay > 31 {
		result = multierror.Append(result, fmt.Errorf("report.salary_payment_day must be 1-31, got %d", c.Report.SalaryPaymentDay))
	}
	if c.Report.FlexPaymentDay < 0 || c.Report.FlexPaymentDay > 31 {
		result = multierror.Append(result, fmt.Errorf("report.flex_payment_day must be 1-31, got %d", c.Report.FlexPaymentDay))
	}

	for i, list := range c.PaymentLists {
		if !validListTypes[list.Type] {
			result = multierror.Append(result, fmt.Errorf("payment_lists[%d]: unknown type %q", i, list.Type))
		}
		if list.Type == "flex" && c.Report.FlexPaymentDay == 0 {
			result = multierror.Append(result, fmt.Errorf("payment_lists[%d]: flex list requires report.flex_payment_day", i))
		}
		for j, p := range list.Payments {
			prefix := fmt.Sprintf("payment_lists[%d].payments[%d]", i, j)
			if p.Name == "" {
				result = multierror.Append(result, fmt.Errorf("%s: name is required", prefix))
			}
			switch list.Type {
			case "finance", "amazon_payments":
				if p.Amount <= 0 {
					result = multierror.Append(result, fmt.Errorf("%s: amount must be positive", prefix))
				}
				if p.Months <= 0 && !p.SinglePayment {
					result = multierror.Append(result, fmt.Errorf("%s: months must be positive", prefix))
				}
			case "flex":
				if p.Amount <= 0 {
					result = multierror.Append(result, fmt.Errorf("%s: amount must be positive", prefix))
				}
				if p.Months <= 0 {
					result = multierror.Append(result, fmt.Errorf("%s: months must be positive", prefix))
				}
				if p.SinglePayment {
					result = multierror.Append(result, fmt.Errorf("%s: single_payment is not supported for flex", prefix))
				}
			case "refund":
				if p.Amount <= 0 {
					result = multierror.Append(result, fmt.Errorf("%s: amount must be positive", prefix))
				}
			}
			if p.PaymentDay != 0 && (p.PaymentDay < 1 || p.PaymentDay > 31) {
				result = multierror.Append(result, fmt.Errorf("%s: payment_day must be 1-31, got %d", prefix, p.PaymentDay))
			}
			if (p.YearlyMonth > 0) != (p.YearlyDay > 0) {
				result = multierror.Append(result, fmt.Errorf("%s: yearly_month and yearly_day must be set together", prefix))
			}
			if p.YearlyMonth < 0 || p.YearlyMonth > 12 {
				result = multierror.Append(result, fmt.Errorf("%s: yearly_month must be 1-12", prefix))
			}
			for _, m := range p.ExcludeMonths {
				if m < 1 || m > 12 {
					result = multierror.Append(result, fmt.Errorf("%s: exclude_months entry %d out of range", prefix, m))
				}
			}
			if p.Currency != "" {
				if _, ok := c.ExchangeRates[p.Currency]; !ok {
					result = multierror.Append(result, fmt.Errorf("%s: no exchange rate configured for %s", prefix, p.Currency))
				}
			}
		}
	}

	return result.ErrorOrNil()
}

var validListTypes = map[string]bool{
	"payment":         true,
	"direct_debit":    true,
	"standing_order":  true,
	"card_payment":    true,
	"finance":         true,
	"amazon_payments": true,
	"flex":            true,
	"refund":          true,
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(dateLayout),
		stringToStringListHook(),
	)
}

// stringToStringListHook lets `desc: "NETFLIX"` and
// `desc: ["NETFLIX", "Netflix"]` both decode into a StringList.
func stringToStringListHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(StringList(nil)) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return StringList{data.(string)}, nil
		}
		return data, nil
	}
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations
func (c *Config) GetMigrationDBURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}
