package books

// Book holds metadata for a single canonical book.
type Book struct {
	// Name is the canonical name, e.g. "Genesis" or "1 Corinthians".
	Name string
	// Order is the position in the Protestant canon (1-66).
	Order int
	// Base is the unnumbered part of a numbered book ("Corinthians"), empty otherwise.
	Base string
	// Number is the leading numeral of a numbered book, zero otherwise.
	Number int
	// Chapters is the chapter count in the KJV versification.
	Chapters int
}

// Canon lists the books of the Protestant canon in order.
var Canon = []Book{
	// Old Testament
	{"Genesis", 1, "", 0, 50},
	{"Exodus", 2, "", 0, 40},
	{"Leviticus", 3, "", 0, 27},
	{"Numbers", 4, "", 0, 36},
	{"Deuteronomy", 5, "", 0, 34},
	{"Joshua", 6, "", 0, 24},
	{"Judges", 7, "", 0, 21},
	{"Ruth", 8, "", 0, 4},
	{"1 Samuel", 9, "Samuel", 1, 31},
	{"2 Samuel", 10, "Samuel", 2, 24},
	{"1 Kings", 11, "Kings", 1, 22},
	{"2 Kings", 12, "Kings", 2, 25},
	{"1 Chronicles", 13, "Chronicles", 1, 29},
	{"2 Chronicles", 14, "Chronicles", 2, 36},
	{"Ezra", 15, "", 0, 10},
	{"Nehemiah", 16, "", 0, 13},
	{"Esther", 17, "", 0, 10},
	{"Job", 18, "", 0, 42},
	{"Psalms", 19, "", 0, 150},
	{"Proverbs", 20, "", 0, 31},
	{"Ecclesiastes", 21, "", 0, 12},
	{"Song of Solomon", 22, "", 0, 8},
	{"Isaiah", 23, "", 0, 66},
	{"Jeremiah", 24, "", 0, 52},
	{"Lamentations", 25, "", 0, 5},
	{"Ezekiel", 26, "", 0, 48},
	{"Daniel", 27, "", 0, 12},
	{"Hosea", 28, "", 0, 14},
	{"Joel", 29, "", 0, 3},
	{"Amos", 30, "", 0, 9},
	{"Obadiah", 31, "", 0, 1},
	{"Jonah", 32, "", 0, 4},
	{"Micah", 33, "", 0, 7},
	{"Nahum", 34, "", 0, 3},
	{"Habakkuk", 35, "", 0, 3},
	{"Zephaniah", 36, "", 0, 3},
	{"Haggai", 37, "", 0, 2},
	{"Zechariah", 38, "", 0, 14},
	{"Malachi", 39, "", 0, 4},
	// New Testament
	{"Matthew", 40, "", 0, 28},
	{"Mark", 41, "", 0, 16},
	{"Luke", 42, "", 0, 24},
	{"John", 43, "", 0, 21},
	{"Acts", 44, "", 0, 28},
	{"Romans", 45, "", 0, 16},
	{"1 Corinthians", 46, "Corinthians", 1, 16},
	{"2 Corinthians", 47, "Corinthians", 2, 13},
	{"Galatians", 48, "", 0, 6},
	{"Ephesians", 49, "", 0, 6},
	{"Philippians", 50, "", 0, 4},
	{"Colossians", 51, "", 0, 4},
	{"1 Thessalonians", 52, "Thessalonians", 1, 5},
	{"2 Thessalonians", 53, "Thessalonians", 2, 3},
	{"1 Timothy", 54, "Timothy", 1, 6},
	{"2 Timothy", 55, "Timothy", 2, 4},
	{"Titus", 56, "", 0, 3},
	{"Philemon", 57, "", 0, 1},
	{"Hebrews", 58, "", 0, 13},
	{"James", 59, "", 0, 5},
	{"1 Peter", 60, "Peter", 1, 5},
	{"2 Peter", 61, "Peter", 2, 3},
	{"1 John", 62, "John", 1, 5},
	{"2 John", 63, "John", 2, 1},
	{"3 John", 64, "John", 3, 1},
	{"Jude", 65, "", 0, 1},
	{"Revelation", 66, "", 0, 22},
}

// aliases maps lower-case short forms, misspellings and speech-to-text
// homophones to canonical names. An alias listed for more than one book is
// ambiguous.
var aliases = map[string][]string{
	// Law
	"gen": {"Genesis"}, "genisis": {"Genesis"}, "genesys": {"Genesis"},
	"exod": {"Exodus"}, "exo": {"Exodus"}, "exodis": {"Exodus"},
	"lev": {"Leviticus"}, "levitikus": {"Leviticus"}, "leviticas": {"Leviticus"},
	"num": {"Numbers"},
	"deut": {"Deuteronomy"}, "deu": {"Deuteronomy"}, "duteronomy": {"Deuteronomy"},
	"dueteronomy": {"Deuteronomy"}, "deuteronomey": {"Deuteronomy"},
	// History
	"josh": {"Joshua"}, "jos": {"Joshua"},
	"judg": {"Judges"}, "jdg": {"Judges"},
	"jud": {"Judges", "Jude"},
	"neh": {"Nehemiah"}, "nehemia": {"Nehemiah"},
	"esth": {"Esther"},
	// Wisdom
	"psalm": {"Psalms"}, "ps": {"Psalms"}, "psa": {"Psalms"}, "palms": {"Psalms"},
	"salms": {"Psalms"}, "psalmes": {"Psalms"},
	"prov": {"Proverbs"}, "proverb": {"Proverbs"},
	"eccl": {"Ecclesiastes"}, "eccles": {"Ecclesiastes"}, "ecc": {"Ecclesiastes"},
	"ecclesiastic": {"Ecclesiastes"}, "ecclesiastics": {"Ecclesiastes"},
	"song of songs": {"Song of Solomon"}, "songs of solomon": {"Song of Solomon"},
	"song": {"Song of Solomon"}, "canticles": {"Song of Solomon"}, "song of sol": {"Song of Solomon"},
	// Prophets
	"isa": {"Isaiah"}, "isiah": {"Isaiah"}, "isaih": {"Isaiah"}, "esaias": {"Isaiah"},
	"jer": {"Jeremiah"}, "jeremias": {"Jeremiah"},
	"lam": {"Lamentations"}, "lamentation": {"Lamentations"},
	"ezek": {"Ezekiel"}, "eze": {"Ezekiel"}, "ezekial": {"Ezekiel"}, "ezikiel": {"Ezekiel"},
	"dan": {"Daniel"},
	"hos": {"Hosea"}, "hoseah": {"Hosea"},
	"obad": {"Obadiah"}, "oba": {"Obadiah"},
	"jona": {"Jonah"},
	"mic": {"Micah"},
	"nah": {"Nahum"},
	"hab": {"Habakkuk"}, "habakuk": {"Habakkuk"}, "habbakuk": {"Habakkuk"},
	"zeph": {"Zephaniah"},
	"hag": {"Haggai"},
	"zech": {"Zechariah"}, "zachariah": {"Zechariah"}, "zecharia": {"Zechariah"},
	"mal": {"Malachi"}, "malachai": {"Malachi"},
	// Gospels and Acts
	"matt": {"Matthew"}, "mat": {"Matthew"}, "mathew": {"Matthew"}, "matthews": {"Matthew"},
	"mk": {"Mark"}, "mrk": {"Mark"},
	"lk": {"Luke"}, "luk": {"Luke"},
	"jn": {"John"}, "jhn": {"John"},
	"acts of the apostles": {"Acts"},
	// Epistles
	"rom": {"Romans"}, "roman": {"Romans"},
	"gal": {"Galatians"}, "galatian": {"Galatians"}, "galations": {"Galatians"},
	"eph": {"Ephesians"}, "ephesian": {"Ephesians"}, "ephes": {"Ephesians"}, "ephesions": {"Ephesians"},
	"phil": {"Philippians", "Philemon"},
	"php": {"Philippians"}, "phillipians": {"Philippians"}, "philipians": {"Philippians"},
	"philippian": {"Philippians"},
	"col": {"Colossians"}, "colossian": {"Colossians"}, "collosians": {"Colossians"}, "colosians": {"Colossians"},
	"philem": {"Philemon"}, "phlm": {"Philemon"}, "phm": {"Philemon"},
	"heb": {"Hebrews"}, "hebrew": {"Hebrews"},
	"jas": {"James"},
	// Revelation
	"rev": {"Revelation"}, "revelations": {"Revelation"}, "revalation": {"Revelation"},
}

// baseAliases maps forms of the unnumbered part of numbered books to Base.
var baseAliases = map[string]string{
	"samuel": "Samuel", "sam": "Samuel",
	"kings": "Kings", "king": "Kings", "kgs": "Kings",
	"chronicles": "Chronicles", "chronicle": "Chronicles", "chron": "Chronicles", "chr": "Chronicles",
	"corinthians": "Corinthians", "corinthian": "Corinthians", "cor": "Corinthians",
	"thessalonians": "Thessalonians", "thessalonian": "Thessalonians", "thess": "Thessalonians",
	"thes": "Thessalonians",
	"timothy": "Timothy", "tim": "Timothy", "timothey": "Timothy",
	"peter": "Peter", "pet": "Peter",
	"john": "John", "jn": "John", "jhn": "John",
}

// prefixes maps spoken and written numeral prefixes to their value.
var prefixes = map[string]int{
	"1": 1, "2": 2, "3": 3,
	"1st": 1, "2nd": 2, "3rd": 3,
	"first": 1, "second": 2, "third": 3,
	"one": 1, "two": 2, "three": 3,
	"i": 1, "ii": 2, "iii": 3,
}
