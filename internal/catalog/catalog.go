// Package catalog holds the static trade and city registries and builds
// the cross-product of crawl combos from them.
package catalog

// Trade is one artisan trade the pipeline searches for.
type Trade struct {
	// Key identifies the trade in combo keys and listing records.
	Key string
	// Query is the search phrase sent to the content source.
	Query string
	// Label is the human-readable form used in logs.
	Label string
}

// City is the prefecture city used to anchor searches for a department.
type City struct {
	Name       string
	Department string
	PostalCode string
}

// Combo is one immutable (trade, city) unit of work.
type Combo struct {
	Trade Trade
	City  City
}

// Key returns the combo identity used by the checkpoint completed-set.
func (c Combo) Key() string {
	return c.Trade.Key + "@" + c.City.Name
}

// Trades lists every trade crawled, keyed for combo identity.
var Trades = []Trade{
	{Key: "plombier", Query: "plombier", Label: "Plombier"},
	{Key: "electricien", Query: "électricien", Label: "Électricien"},
	{Key: "chauffagiste", Query: "chauffagiste", Label: "Chauffagiste"},
	{Key: "menuisier", Query: "menuisier", Label: "Menuisier"},
	{Key: "serrurier", Query: "serrurier", Label: "Serrurier"},
	{Key: "couvreur", Query: "couvreur", Label: "Couvreur"},
	{Key: "macon", Query: "maçon", Label: "Maçon"},
	{Key: "peintre", Query: "peintre en bâtiment", Label: "Peintre"},
	{Key: "carreleur", Query: "carreleur", Label: "Carreleur"},
	{Key: "charpentier", Query: "charpentier", Label: "Charpentier"},
	{Key: "platrier", Query: "plâtrier plaquiste", Label: "Plâtrier"},
	{Key: "facade", Query: "façadier ravalement", Label: "Façadier"},
	{Key: "terrassier", Query: "terrassement", Label: "Terrassier"},
}

// prefectures maps each metropolitan department to its prefecture city
// and that city's primary postal code.
var prefectures = []City{
	{"Bourg-en-Bresse", "01", "01000"}, {"Laon", "02", "02000"},
	{"Moulins", "03", "03000"}, {"Digne-les-Bains", "04", "04000"},
	{"Gap", "05", "05000"}, {"Nice", "06", "06000"},
	{"Privas", "07", "07000"}, {"Charleville-Mézières", "08", "08000"},
	{"Foix", "09", "09000"}, {"Troyes", "10", "10000"},
	{"Carcassonne", "11", "11000"}, {"Rodez", "12", "12000"},
	{"Marseille", "13", "13000"}, {"Caen", "14", "14000"},
	{"Aurillac", "15", "15000"}, {"Angoulême", "16", "16000"},
	{"La Rochelle", "17", "17000"}, {"Bourges", "18", "18000"},
	{"Tulle", "19", "19000"}, {"Ajaccio", "2A", "20000"},
	{"Bastia", "2B", "20200"}, {"Dijon", "21", "21000"},
	{"Saint-Brieuc", "22", "22000"}, {"Guéret", "23", "23000"},
	{"Périgueux", "24", "24000"}, {"Besançon", "25", "25000"},
	{"Valence", "26", "26000"}, {"Évreux", "27", "27000"},
	{"Chartres", "28", "28000"}, {"Quimper", "29", "29000"},
	{"Nîmes", "30", "30000"}, {"Toulouse", "31", "31000"},
	{"Auch", "32", "32000"}, {"Bordeaux", "33", "33000"},
	{"Montpellier", "34", "34000"}, {"Rennes", "35", "35000"},
	{"Châteauroux", "36", "36000"}, {"Tours", "37", "37000"},
	{"Grenoble", "38", "38000"}, {"Lons-le-Saunier", "39", "39000"},
	{"Mont-de-Marsan", "40", "40000"}, {"Blois", "41", "41000"},
	{"Saint-Étienne", "42", "42000"}, {"Le Puy-en-Velay", "43", "43000"},
	{"Nantes", "44", "44000"}, {"Orléans", "45", "45000"},
	{"Cahors", "46", "46000"}, {"Agen", "47", "47000"},
	{"Mende", "48", "48000"}, {"Angers", "49", "49000"},
	{"Saint-Lô", "50", "50000"}, {"Reims", "51", "51100"},
	{"Chaumont", "52", "52000"}, {"Laval", "53", "53000"},
	{"Nancy", "54", "54000"}, {"Bar-le-Duc", "55", "55000"},
	{"Vannes", "56", "56000"}, {"Metz", "57", "57000"},
	{"Nevers", "58", "58000"}, {"Lille", "59", "59000"},
	{"Beauvais", "60", "60000"}, {"Alençon", "61", "61000"},
	{"Arras", "62", "62000"}, {"Clermont-Ferrand", "63", "63000"},
	{"Pau", "64", "64000"}, {"Tarbes", "65", "65000"},
	{"Perpignan", "66", "66000"}, {"Strasbourg", "67", "67000"},
	{"Colmar", "68", "68000"}, {"Lyon", "69", "69001"},
	{"Vesoul", "70", "70000"}, {"Mâcon", "71", "71000"},
	{"Le Mans", "72", "72000"}, {"Chambéry", "73", "73000"},
	{"Annecy", "74", "74000"}, {"Paris", "75", "75001"},
	{"Rouen", "76", "76000"}, {"Melun", "77", "77000"},
	{"Versailles", "78", "78000"}, {"Niort", "79", "79000"},
	{"Amiens", "80", "80000"}, {"Albi", "81", "81000"},
	{"Montauban", "82", "82000"}, {"Toulon", "83", "83000"},
	{"Avignon", "84", "84000"}, {"La Roche-sur-Yon", "85", "85000"},
	{"Poitiers", "86", "86000"}, {"Limoges", "87", "87000"},
	{"Épinal", "88", "88000"}, {"Auxerre", "89", "89000"},
	{"Belfort", "90", "90000"}, {"Évry", "91", "91000"},
	{"Nanterre", "92", "92000"}, {"Bobigny", "93", "93000"},
	{"Créteil", "94", "94000"}, {"Cergy", "95", "95000"},
}

// Cities returns the city catalog, one prefecture per department.
func Cities() []City {
	out := make([]City, len(prefectures))
	copy(out, prefectures)
	return out
}

// CityForDepartment resolves a department code to its prefecture city.
// The second return is false for unknown codes.
func CityForDepartment(dept string) (City, bool) {
	for _, c := range prefectures {
		if c.Department == dept {
			return c, true
		}
	}
	return City{}, false
}

// Total is the full combo count before checkpoint subtraction.
func Total() int {
	return len(Trades) * len(prefectures)
}

// BuildCombos cross-products the catalogs, skipping combos whose key is
// already in the completed set. Order is trade-major, matching the
// checkpointed runs that produced existing completed keys.
func BuildCombos(completed map[string]struct{}) []Combo {
	combos := make([]Combo, 0, Total())
	for _, t := range Trades {
		for _, c := range prefectures {
			combo := Combo{Trade: t, City: c}
			if _, done := completed[combo.Key()]; done {
				continue
			}
			combos = append(combos, combo)
		}
	}
	return combos
}
