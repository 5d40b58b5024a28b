// Package sandbox generates reproducible demo records for the console's
// resources and submits them through the normal create path, so a fresh
// backend can be populated for UI demos and developer on-boarding.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/emr/console/internal/domain/entity"
)

// ---------------------------------------------------------------------------
// Name pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale = []string{
		"James", "Brian", "Daniel", "Joseph", "Samuel", "Peter", "David",
		"Kevin", "Michael", "Dennis", "George", "Patrick", "Paul", "Victor",
	}
	firstNamesFemale = []string{
		"Amina", "Carol", "Grace", "Mary", "Faith", "Esther", "Ruth",
		"Joyce", "Sarah", "Mercy", "Lucy", "Agnes", "Diana", "Nancy",
	}
	lastNames = []string{
		"Otieno", "Wanjiru", "Yusuf", "Mwangi", "Achieng", "Kamau",
		"Njoroge", "Odhiambo", "Mutua", "Chebet", "Kiptoo", "Hassan",
		"Omondi", "Nyambura", "Kariuki", "Wekesa",
	}
	streets = []string{
		"Moi Avenue", "Kenyatta Road", "Ngong Road", "Riverside Drive",
		"Mombasa Road", "Thika Road", "Waiyaki Way", "Lenana Road",
	}
	cities = []string{"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret"}

	medicines = []medicineDef{
		{"Amoxil", "Amoxicillin", "capsule", "500 mg"},
		{"Panadol", "Paracetamol", "tablet", "500 mg"},
		{"Ventolin", "Salbutamol", "inhaler", "100 mcg"},
		{"Augmentin", "Amoxicillin/Clavulanate", "tablet", "625 mg"},
		{"Flagyl", "Metronidazole", "tablet", "400 mg"},
		{"Brufen", "Ibuprofen", "syrup", "100 mg/5 ml"},
		{"Rocephin", "Ceftriaxone", "injection", "1 g"},
		{"Betnovate", "Betamethasone", "ointment", "0.1%"},
		{"Otrivin", "Xylometazoline", "drops", "0.1%"},
		{"Glucophage", "Metformin", "tablet", "850 mg"},
	}

	labTests = []labTestDef{
		{"Full blood count", "FBC", "hematology"},
		{"Erythrocyte sedimentation rate", "ESR", "hematology"},
		{"Urea and electrolytes", "UE", "biochemistry"},
		{"Liver function tests", "LFT", "biochemistry"},
		{"Fasting blood sugar", "FBS", "biochemistry"},
		{"Urine culture", "UCS", "microbiology"},
		{"Blood culture", "BCS", "microbiology"},
		{"HIV antibody", "HIVAB", "immunology"},
		{"Hepatitis B surface antigen", "HBSAG", "immunology"},
		{"Histology", "HISTO", "pathology"},
	}
)

type medicineDef struct {
	brand, generic, form, strength string
}

type labTestDef struct {
	name, code, category string
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic create forms. Forms use the same
// field names a browser would submit.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
	now     func() time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("07%02d%06d", g.rng.Intn(100), g.rng.Intn(1000000))
}

// Patient produces a patient form.
func (g *DataGenerator) Patient() url.Values {
	first, gender := g.pick(firstNamesFemale), "female"
	if g.rng.Intn(2) == 0 {
		first, gender = g.pick(firstNamesMale), "male"
	}
	last := g.pick(lastNames)
	g.counter++

	status := "active"
	if g.rng.Intn(10) == 0 {
		status = "inactive"
	}
	return url.Values{
		"name":          {first + " " + last},
		"phone":         {g.randomPhone()},
		"email":         {fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), g.counter)},
		"date_of_birth": {g.randomDate(1940, g.now().Year()-1)},
		"gender":        {gender},
		"address":       {fmt.Sprintf("%d %s, %s", 1+g.rng.Intn(300), g.pick(streets), g.pick(cities))},
		"status":        {status},
	}
}

// Medicine produces a formulary form.
func (g *DataGenerator) Medicine() url.Values {
	def := medicines[g.rng.Intn(len(medicines))]
	g.counter++
	return url.Values{
		"name":         {def.brand},
		"generic_name": {def.generic},
		"form":         {def.form},
		"strength":     {def.strength},
		"stock":        {strconv.Itoa(g.rng.Intn(500))},
		"unit_price":   {fmt.Sprintf("%d.%02d", 5+g.rng.Intn(495), g.rng.Intn(100))},
	}
}

// LabTest produces a lab catalogue form. Codes carry a counter suffix so
// repeated picks stay unique.
func (g *DataGenerator) LabTest() url.Values {
	def := labTests[g.rng.Intn(len(labTests))]
	g.counter++
	return url.Values{
		"name":             {def.name},
		"code":             {fmt.Sprintf("%s%d", def.code, g.counter)},
		"category":         {def.category},
		"price":            {strconv.Itoa(200 + 50*g.rng.Intn(60))},
		"turnaround_hours": {strconv.Itoa([]int{1, 2, 4, 24, 48, 72}[g.rng.Intn(6)])},
		"status":           {"active"},
	}
}

// generators maps resource slugs to the form they produce.
func (g *DataGenerator) generators() map[string]func() url.Values {
	return map[string]func() url.Values{
		"patients":  g.Patient,
		"medicines": g.Medicine,
		"lab-tests": g.LabTest,
	}
}

// Form produces a create form for the resource with the given slug.
func (g *DataGenerator) Form(slug string) (url.Values, bool) {
	gen, ok := g.generators()[slug]
	if !ok {
		return nil, false
	}
	return gen(), true
}

// Supported returns the sorted slugs the generator can produce forms for.
func Supported() []string {
	out := make([]string, 0, 3)
	for slug := range NewDataGenerator(1).generators() {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// SeedResult summarises one Seed run.
type SeedResult struct {
	Resource string `json:"resource"`
	Created  int    `json:"created"`
	Failed   int    `json:"failed"`
}

// Seeder submits generated forms through a resource's create path.
type Seeder struct {
	gen    *DataGenerator
	logger zerolog.Logger
}

// NewSeeder returns a Seeder using a generator seeded with seed.
func NewSeeder(seed int64, logger zerolog.Logger) *Seeder {
	return &Seeder{gen: NewDataGenerator(seed), logger: logger}
}

// Seed creates count records through m. Individual create failures are
// counted and logged; the run stops early only when ctx is done.
func (s *Seeder) Seed(ctx context.Context, m entity.Managed, count int) (SeedResult, error) {
	slug := m.Meta().Slug
	result := SeedResult{Resource: slug}
	if _, ok := s.gen.generators()[slug]; !ok {
		return result, fmt.Errorf("no demo data for %q, one of: %s", slug, strings.Join(Supported(), ", "))
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		form, _ := s.gen.Form(slug)
		if err := m.Create(ctx, form); err != nil {
			result.Failed++
			s.logger.Warn().Err(err).Str("resource", slug).Int("index", i).Msg("demo record rejected")
			continue
		}
		result.Created++
	}
	s.logger.Info().Str("resource", slug).Int("created", result.Created).Int("failed", result.Failed).Msg("seeded demo records")
	return result, nil
}
