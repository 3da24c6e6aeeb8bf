// Package seed 從 YAML 種子檔載入租戶、獎勵與積分規則
//
// 租戶開通與目錄管理不屬於核心服務；種子檔讓開發與測試環境有可用的資料。
// 載入是冪等的：租戶與規則以相同的鍵覆寫；已存在的獎勵保持不變，
// 重新啟動不會重設庫存。
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/earning"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/reward"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_engine/src/internal/domain/tenant"
	"gopkg.in/yaml.v3"
)

// ruleNamespace 規則 ID 的 UUIDv5 namespace
var ruleNamespace = uuid.MustParse("6f1d8a52-2c43-4c1e-9a55-0b6f3f2e7d10")

// File 種子檔內容
type File struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Tenant 租戶與其目錄
type Tenant struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Active  *bool    `yaml:"active"`
	Rewards []Reward `yaml:"rewards"`
	Rules   []Rule   `yaml:"rules"`
}

// Reward 獎勵
type Reward struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	PointsCost int    `yaml:"points_cost"`
	Quantity   int    `yaml:"quantity"`
	Price      *Price `yaml:"price"`
}

// Price 金額以字串表示，避免浮點誤差
type Price struct {
	Amount   string `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// Rule 積分規則；ID 為空時由 (tenant, event_type, event_name) 推導
type Rule struct {
	ID        string             `yaml:"id"`
	EventType string             `yaml:"event_type"`
	EventName string             `yaml:"event_name"`
	Policy    earning.PolicySpec `yaml:"policy"`
	Active    *bool              `yaml:"active"`
}

// TenantStore 租戶寫入（persistence/tenant.Registry）
type TenantStore interface {
	tenant.Registry
	Upsert(ctx context.Context, record tenant.Record) error
}

// Summary 載入結果
type Summary struct {
	Tenants int
	// Rewards 新建立的獎勵數
	Rewards int
	Rules   int
}

// Loader 種子載入器
type Loader struct {
	tenants   TenantStore
	rewards   reward.RewardRepository
	rules     earning.RuleRepository
	txManager shared.TransactionManager
}

// NewLoader 建立種子載入器
func NewLoader(tenants TenantStore, rewards reward.RewardRepository, rules earning.RuleRepository, txManager shared.TransactionManager) *Loader {
	return &Loader{tenants: tenants, rewards: rewards, rules: rules, txManager: txManager}
}

// Parse 解析種子檔
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return &f, nil
}

// LoadFile 讀取並載入種子檔
func (l *Loader) LoadFile(ctx context.Context, path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading seed %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return Summary{}, err
	}
	return l.Load(ctx, f)
}

// Load 載入；每個租戶的獎勵與規則在同一事務內寫入
func (l *Loader) Load(ctx context.Context, f *File) (Summary, error) {
	var summary Summary
	resolver := tenant.NewResolver(l.tenants)

	for _, ts := range f.Tenants {
		id, err := tenant.TenantIDFromString(ts.ID)
		if err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}
		name := ts.Name
		if name == "" {
			name = ts.ID
		}
		active := ts.Active == nil || *ts.Active
		if err := l.tenants.Upsert(ctx, tenant.Record{ID: id, Name: name, Active: active}); err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}
		summary.Tenants++
		if !active {
			continue
		}

		t, err := resolver.Resolve(ctx, ts.ID)
		if err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}

		rewards, err := buildRewards(t, ts.Rewards)
		if err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}
		rules, err := buildRules(t, ts.Rules)
		if err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}

		created := 0
		err = l.txManager.InTransaction(ctx, func(tx shared.TransactionContext) error {
			for _, rw := range rewards {
				_, err := l.rewards.FindByID(tx, t, rw.ID())
				if err == nil {
					continue
				}
				if !errors.Is(err, reward.ErrRewardNotFound) {
					return fmt.Errorf("reward %s: %w", rw.ID(), err)
				}
				if err := l.rewards.Save(tx, t, rw); err != nil {
					return fmt.Errorf("reward %s: %w", rw.ID(), err)
				}
				created++
			}
			for _, rule := range rules {
				if err := l.rules.Save(tx, t, rule); err != nil {
					return fmt.Errorf("rule %s: %w", rule.Event(), err)
				}
			}
			return nil
		})
		if err != nil {
			return summary, fmt.Errorf("seed tenant %q: %w", ts.ID, err)
		}
		summary.Rewards += created
		summary.Rules += len(rules)
	}
	return summary, nil
}

func buildRewards(t tenant.Tenant, specs []Reward) ([]*reward.Reward, error) {
	rewards := make([]*reward.Reward, 0, len(specs))
	for _, rs := range specs {
		id, err := reward.RewardIDFromString(rs.ID)
		if err != nil {
			return nil, err
		}
		var price reward.Price
		if rs.Price != nil {
			price, err = reward.ParsePrice(rs.Price.Amount, rs.Price.Currency)
			if err != nil {
				return nil, fmt.Errorf("reward %s: %w", rs.ID, err)
			}
		}
		name := rs.Name
		if name == "" {
			name = rs.ID
		}
		rw, err := reward.NewReward(t, id, name, rs.PointsCost, rs.Quantity, price)
		if err != nil {
			return nil, fmt.Errorf("reward %s: %w", rs.ID, err)
		}
		rewards = append(rewards, rw)
	}
	return rewards, nil
}

func buildRules(t tenant.Tenant, specs []Rule) ([]*earning.EarningRule, error) {
	rules := make([]*earning.EarningRule, 0, len(specs))
	for _, rs := range specs {
		event, err := earning.NewEventKey(rs.EventType, rs.EventName)
		if err != nil {
			return nil, err
		}
		policy, err := rs.Policy.ToPolicy()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", event, err)
		}

		rawID := rs.ID
		if rawID == "" {
			rawID = uuid.NewSHA1(ruleNamespace, []byte(t.ID().String()+"/"+event.String())).String()
		}
		id, err := earning.RuleIDFromString(rawID)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", event, err)
		}

		active := rs.Active == nil || *rs.Active
		rules = append(rules, earning.ReconstructEarningRule(id, t.ID(), event, policy, active, time.Now().UTC()))
	}
	return rules, nil
}
