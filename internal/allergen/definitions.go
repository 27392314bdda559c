package allergen

import (
	"sort"
	"strings"
)

// Definition maps an allergen name to the keyword strings used for matching.
// Definitions are loaded once at process start and never mutated.
type Definition struct {
	Name     string
	Keywords []string
}

// Matches reports whether food matches any of the definition's keywords.
//
// The match is case-insensitive substring containment in both directions: the
// food contains the keyword ("scrambled eggs" vs "egg") or the keyword
// contains the food ("egg" vs "scrambled egg"). Short keywords can therefore
// match inside unrelated words; that looseness is deliberate and kept.
func (d Definition) Matches(food string) bool {
	f := strings.ToLower(strings.TrimSpace(food))
	if f == "" {
		return false
	}
	for _, kw := range d.Keywords {
		k := strings.ToLower(kw)
		if strings.Contains(f, k) || strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// WithExtraKeywords returns a copy of defs with extra keywords merged in,
// keyed by allergen name (case-insensitive). Names that match no existing
// definition become new definitions appended after the built-in ones. The
// input slices are never modified.
func WithExtraKeywords(defs []Definition, extra map[string][]string) []Definition {
	if len(extra) == 0 {
		return defs
	}

	out := make([]Definition, len(defs))
	for i, d := range defs {
		out[i] = Definition{Name: d.Name, Keywords: append([]string(nil), d.Keywords...)}
	}

	// Sort the extra names so the appended definition order is stable.
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		merged := false
		for i := range out {
			if strings.EqualFold(out[i].Name, name) {
				out[i].Keywords = append(out[i].Keywords, extra[name]...)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, Definition{
				Name:     strings.ToLower(name),
				Keywords: append([]string(nil), extra[name]...),
			})
		}
	}
	return out
}

// DefaultDefinitions returns the built-in allergen set. The keyword lists
// include common misspellings on purpose — entries are typed by hand in the
// feeding app and substring matching absorbs most of the noise.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "dairy", Keywords: []string{
			"milk", "cream", "butter", "ghee",
			"yogurt", "yoghurt", "yogart", "yougurt", "yohgurt",
			"cheese", "cheez", "mozzarella", "mozarella", "mozzarela", "cheddar", "chedar",
			"parmesan", "parmasan", "parmasean", "parm", "brie", "gouda", "feta", "ricotta",
			"ricota", "cottage", "cotage", "swiss", "provolone", "colby", "jack", "goat cheese",
			"paneer", "queso", "mascarpone",
			"custard", "pudding", "ice cream", "icecream", "gelato", "whey", "casein",
			"kefir", "lassi", "ranch", "alfredo",
		}},
		{Name: "egg", Keywords: []string{
			"egg", "eggs", "eggg", "egs",
			"omelette", "omelet", "omlette", "omlet", "scramble", "frittata", "quiche",
			"souffle", "soufle", "meringue", "merang", "custard",
			"challah", "chalah", "challa", "brioche", "french toast",
			"yolk", "albumin",
			"mayo", "mayonnaise", "mayonaise", "aioli",
		}},
		{Name: "fish", Keywords: []string{
			"fish", "salmon", "salman", "samon", "tuna", "tunna", "cod", "tilapia", "tillapia",
			"sardine", "sardines", "anchovy", "anchovies", "anchove", "herring", "mackerel",
			"mackeral", "trout", "bass", "halibut", "haddock", "sole", "flounder", "snapper",
			"grouper", "catfish", "perch", "pike", "pollock", "whiting", "swordfish", "mahi",
			"wahoo", "branzino", "sea bass", "seabass", "arctic char",
		}},
		{Name: "crustacean shellfish", Keywords: []string{
			"shrimp", "shripm", "shrinp", "prawn", "prawns", "lobster", "lobstar", "crab",
			"crabs", "crayfish", "crawfish", "crawdad", "langoustine", "scampi", "krill",
		}},
		{Name: "peanut", Keywords: []string{
			"peanut", "peanuts", "penut", "penuts", "peanit", "groundnut",
			"bamba", "bamaba", "bambas",
			"pb&j", "pb and j", "pbj",
		}},
		{Name: "tree nut", Keywords: []string{
			"almond", "almonds", "amond", "almand", "cashew", "cashews", "cashue", "cashu",
			"walnut", "walnuts", "wallnut", "pecan", "pecans", "pican", "pistachio",
			"pistachios", "pistacho", "hazelnut", "hazelnuts", "filbert",
			"macadamia", "macademia", "brazil nut", "brazilnut", "pine nut", "pinenut",
			"chestnut", "chesnut", "praline", "marzipan", "nutella",
			"almond milk", "cashew milk", "almond butter", "cashew butter",
		}},
		{Name: "wheat", Keywords: []string{
			"wheat", "wheatgerm", "bread", "breads", "bred", "toast", "toasted",
			"pasta", "pastas", "noodle", "noodles", "spaghetti", "spagetti", "spagheti",
			"macaroni", "maccaroni", "penne", "fusilli", "rigatoni", "linguine", "fettuccine",
			"lasagna", "lasagne", "ravioli", "tortellini", "gnocchi",
			"couscous", "cous cous", "couscouse", "bulgur", "bulgar", "farro", "semolina",
			"matzah", "matza", "matzoh", "matzo", "challah", "chalah", "bagel", "bagle",
			"croissant", "croissan", "muffin", "biscuit", "biscit", "cracker", "pretzel",
			"pretsel", "pancake", "pancakes", "waffle", "waffles", "wafel", "pita", "pitta",
			"tortilla", "tortila", "wrap", "flour tortilla", "naan", "nan", "roti", "chapati",
			"cereal", "cheerios", "oatmeal", "farina", "cream of wheat",
			"breaded", "breadcrumb", "panko", "crusted",
			"seitan", "flour", "gluten",
		}},
		{Name: "soy", Keywords: []string{
			"soy", "soya", "soybean", "soybeans", "edamame", "edamamme", "edemame",
			"tofu", "toffu", "tempeh", "tempe", "miso", "natto",
			"soy sauce", "soysauce", "tamari", "teriyaki",
			"soy milk", "soymilk",
		}},
		{Name: "sesame", Keywords: []string{
			"sesame", "seseme", "seasame", "sesamee",
			"tahini", "tahina", "tehini", "tehina",
			"hummus", "humus", "hummous", "houmous", "houmus",
			"halvah", "halva", "halawa",
			"baba ganoush", "baba ghanoush", "babaganoush",
		}},
	}
}
