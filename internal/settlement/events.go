// internal/settlement/events.go
package settlement

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"business-empire/internal/models"
)

// ==========================
// Event Engine
// ==========================

// Event categories. The catalog is a closed set: new kinds are added to the
// table below, never discovered at runtime.
const (
	CategoryEmployee = "employee"
	CategoryMarket   = "market"
	CategoryPR       = "pr"
	CategoryLucky    = "lucky"
	CategoryProduct  = "product"
)

// eventSpec is one catalog entry: a weighted kind whose effect derives the
// concrete deltas from the company snapshot and the run's random source.
type eventSpec struct {
	Kind        string
	Category    string
	Description string
	Weight      int64
	Effect      func(snap *models.CompanySnapshot, r *rand.Rand) (cashDelta int64, employeeDelta int)
}

func flatCash(amount int64) func(*models.CompanySnapshot, *rand.Rand) (int64, int) {
	return func(*models.CompanySnapshot, *rand.Rand) (int64, int) { return amount, 0 }
}

// fundsShare returns a cash delta of bps of current funds (negative bps for
// a loss), so the shock scales with company size.
func fundsShare(bps int64) func(*models.CompanySnapshot, *rand.Rand) (int64, int) {
	return func(snap *models.CompanySnapshot, _ *rand.Rand) (int64, int) {
		return snap.Company.Funds * bps / models.StakeScale, 0
	}
}

var eventCatalog = []eventSpec{
	// employee
	{"resignation", CategoryEmployee, "An employee resigned", 10,
		func(snap *models.CompanySnapshot, _ *rand.Rand) (int64, int) {
			if snap.Company.EmployeeCount == 0 {
				return 0, 0
			}
			return 0, -1
		}},
	{"mass_resignation", CategoryEmployee, "Several employees left at once", 3,
		func(snap *models.CompanySnapshot, r *rand.Rand) (int64, int) {
			n := 2 + r.Intn(3)
			if n > snap.Company.EmployeeCount {
				n = snap.Company.EmployeeCount
			}
			return 0, -n
		}},
	{"retirement", CategoryEmployee, "A veteran employee retired with a bonus", 6,
		func(snap *models.CompanySnapshot, _ *rand.Rand) (int64, int) {
			if snap.Company.EmployeeCount == 0 {
				return 0, 0
			}
			return -100, -1
		}},
	{"star_hire", CategoryEmployee, "A talented candidate joined for free", 6,
		func(_ *models.CompanySnapshot, _ *rand.Rand) (int64, int) { return 0, 1 }},
	{"strike", CategoryEmployee, "Workers went on strike over conditions", 4,
		func(snap *models.CompanySnapshot, _ *rand.Rand) (int64, int) {
			return -int64(snap.Company.EmployeeCount) * 20, 0
		}},
	{"headhunted", CategoryEmployee, "A competitor poached a key employee", 5,
		func(snap *models.CompanySnapshot, _ *rand.Rand) (int64, int) {
			if snap.Company.EmployeeCount == 0 {
				return 0, 0
			}
			return 0, -1
		}},

	// market
	{"market_boom", CategoryMarket, "Favorable market conditions boosted sales", 8, fundsShare(300)},
	{"market_crash", CategoryMarket, "A market downturn hit the balance sheet", 4, fundsShare(-500)},
	{"currency_swing", CategoryMarket, "Exchange rates moved against the company", 6, fundsShare(-150)},
	{"supply_shortage", CategoryMarket, "A supplier raised prices on short notice", 6, flatCash(-200)},
	{"new_contract", CategoryMarket, "A lucrative contract was signed", 7, flatCash(400)},

	// pr
	{"pr_crisis", CategoryPR, "A PR crisis required damage control", 5, fundsShare(-250)},
	{"viral_praise", CategoryPR, "A customer story went viral", 6, flatCash(300)},
	{"lawsuit", CategoryPR, "A lawsuit settlement was paid out", 3, flatCash(-600)},
	{"industry_award", CategoryPR, "The company won an industry award", 4, flatCash(250)},

	// lucky
	{"found_money", CategoryLucky, "An accounting review found unclaimed funds", 5, flatCash(150)},
	{"tax_rebate", CategoryLucky, "A tax rebate arrived", 4, flatCash(200)},
	{"sponsor_deal", CategoryLucky, "An unexpected sponsorship came through", 4, flatCash(350)},
	{"generous_investor", CategoryLucky, "An angel investor gifted a grant", 2, flatCash(800)},

	// product
	{"product_defect", CategoryProduct, "A product defect forced a recall", 4, flatCash(-300)},
	{"feature_hit", CategoryProduct, "A new feature drove a sales spike", 6, flatCash(250)},
	{"security_breach", CategoryProduct, "A security breach cost remediation fees", 3, flatCash(-450)},
	{"patent_granted", CategoryProduct, "A patent was granted and licensed", 3, flatCash(300)},
}

var catalogWeight = func() int64 {
	var total int64
	for _, spec := range eventCatalog {
		total += spec.Weight
	}
	return total
}()

// EventKindCount is the size of the event catalog.
var EventKindCount = len(eventCatalog)

// eventSource derives the deterministic random source for one (company,
// date, seed) triple. A retried-but-uncommitted settlement attempt must
// reproduce the same events, so the source depends only on these inputs.
func eventSource(companyID int64, date models.Date, seed int64) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%d", companyID, date, seed)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// RollEvents draws this company's random events for the day. With
// probability chanceBps/10000 the day has one or two events, picked by
// weight from the catalog with duplicate kinds dropped; otherwise none.
// Deterministic for a fixed (company, date, seed).
func RollEvents(snap *models.CompanySnapshot, date models.Date, seed, chanceBps int64) []models.Event {
	r := eventSource(snap.Company.ID, date, seed)

	if r.Int63n(models.StakeScale) >= chanceBps {
		return nil
	}

	draws := 1 + r.Intn(2)
	var events []models.Event
	seen := make(map[string]bool, draws)
	for i := 0; i < draws; i++ {
		spec := drawEvent(r)
		if seen[spec.Kind] {
			continue
		}
		seen[spec.Kind] = true

		cash, employees := spec.Effect(snap, r)
		events = append(events, models.Event{
			Kind:          spec.Kind,
			Category:      spec.Category,
			Description:   spec.Description,
			CashDelta:     cash,
			EmployeeDelta: employees,
		})
	}
	return events
}

func drawEvent(r *rand.Rand) eventSpec {
	roll := r.Int63n(catalogWeight)
	for _, spec := range eventCatalog {
		roll -= spec.Weight
		if roll < 0 {
			return spec
		}
	}
	return eventCatalog[len(eventCatalog)-1]
}
