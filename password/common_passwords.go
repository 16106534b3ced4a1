package password

// commonPasswords is the static deny list consulted by Policy.Validate.
// Entries are lowercase; lookups normalize before matching. The list covers
// the head of the usual breached-corpus frequency tables, not a full breach
// database.
var commonPasswords = map[string]struct{}{
	"123456":        {},
	"123456789":     {},
	"12345678":      {},
	"1234567890":    {},
	"qwerty":        {},
	"qwerty123":     {},
	"qwertyuiop":    {},
	"password":      {},
	"password1":     {},
	"password123":   {},
	"password1234":  {},
	"passw0rd":      {},
	"p@ssw0rd":      {},
	"p@ssword":      {},
	"letmein":       {},
	"welcome":       {},
	"welcome1":      {},
	"welcome123":    {},
	"admin":         {},
	"admin123":      {},
	"administrator": {},
	"root":          {},
	"toor":          {},
	"changeme":      {},
	"change_me":     {},
	"default":       {},
	"secret":        {},
	"secret123":     {},
	"iloveyou":      {},
	"monkey":        {},
	"dragon":        {},
	"sunshine":      {},
	"princess":      {},
	"football":      {},
	"baseball":      {},
	"superman":      {},
	"batman":        {},
	"trustno1":      {},
	"master":        {},
	"shadow":        {},
	"michael":       {},
	"jennifer":      {},
	"jordan":        {},
	"hunter2":       {},
	"abc123":        {},
	"abcd1234":      {},
	"a1b2c3":        {},
	"111111":        {},
	"000000":        {},
	"121212":        {},
	"654321":        {},
	"666666":        {},
	"696969":        {},
	"1q2w3e4r":      {},
	"1qaz2wsx":      {},
	"zaq12wsx":      {},
	"asdfgh":        {},
	"asdfghjkl":     {},
	"zxcvbnm":       {},
	"qazwsx":        {},
	"login":         {},
	"starwars":      {},
	"pokemon":       {},
	"computer":      {},
	"internet":      {},
	"summer":        {},
	"winter":        {},
	"spring":        {},
	"autumn":        {},
	"freedom":       {},
	"whatever":      {},
	"nothing":       {},
	"access":        {},
	"test123":       {},
	"testtest":      {},
	"temp123":       {},
	"devops":        {},
	"devops123":     {},
	"deploy":        {},
	"server":        {},
	"ubuntu":        {},
	"oracle":        {},
	"mysql":         {},
	"postgres":      {},
}
