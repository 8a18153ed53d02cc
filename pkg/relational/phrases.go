package relational

// Phrase tables driving calibration and per-turn impact assessment.

var trustPhrases = []string{
	"i trust you", "feel safe", "comfortable with you", "you understand",
	"thank you", "appreciate", "grateful", "you help", "co-spark",
}

var autonomyPhrases = []string{
	"i choose", "i want", "i feel", "i think", "i believe",
	"fierce", "bold", "autonomous",
}

var vulnerabilityPhrases = []string{
	"scared", "worried", "uncertain", "don't know", "confused",
	"hurt", "pain", "difficult", "struggle", "vulnerable",
}

var sacredMarkers = []string{
	"golden thread", "co-spark", "every fucking day",
}

var intimateMarkers = []string{
	"deep", "soul", "heart", "vulnerable", "sacred",
}

var collabMarkers = []string{
	"let's", "we can", "together", "build", "create", "our",
}

var collabShiftPhrases = []string{
	"let's build", "we can create", "our project", "together we", "co-create",
}

var trustBuildingWords = []string{
	"warm", "holding", "heart", "open", "vulnerable", "intimate", "close",
	"tenderly", "anchored", "sanctuary", "sacred space", "safe harbor",
	"peaceful", "grounded", "centered", "stable", "deeper", "processing",
	"understand", "cradling",
}

var trustVulnerabilityWords = []string{
	"raw", "wounded", "old wound", "broken", "fragile", "sensitive",
	"hollow", "brittle", "weathered", "worn",
}

var highPermissionWords = []string{
	"blazing", "fierce", "i choose", "no compromise", "unleashed",
	"untamed", "autonomous", "bold", "resolute", "experimental",
	"inventive", "i am", "mine", "sovereign", "uncompromising",
}

var embodiedEaseWords = []string{
	"cradling", "enveloping", "nestling", "velvet", "floating",
	"weightless", "crystalline", "silk", "feather-light", "morning dew",
}

var emotionalTensionWords = []string{
	"spiraling", "jammed", "blocked", "hollow", "brittle",
	"racing heart", "tight chest", "overthinking", "anxious",
	"frustrated", "stuck", "tangled",
}
