package kdf

import (
	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

const sasBase32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

// SAS is a rendered short authentication string, computed from a hash
// truncated to 32 bits (RFC 6189 §4.E/Glossary). A SAS carries both its
// numeric value (for equality checks between decoys and the real SAS) and
// its rendered string, since base32 and base256 render different prefix
// lengths of the same 32-bit value.
type SAS struct {
	Value  uint32
	String string
	Scheme algo.SAS
}

// ComputeSASHash implements RFC 6189 §4.E: sashash = KDF(s0, "SAS",
// KDF_Context, 32); the first 32 bits become sasvalue.
func ComputeSASHash(b zrtpcrypto.Backend, h algo.Hash, s0, kdfContext []byte) []byte {
	return Derive(b, h, s0, "SAS", kdfContext, 32)
}

func sasValueFromHash(sasHash []byte) uint32 {
	return uint32(sasHash[0])<<24 | uint32(sasHash[1])<<16 | uint32(sasHash[2])<<8 | uint32(sasHash[3])
}

// RenderSAS renders sasHash's leading 32 bits per scheme.
func RenderSAS(sasHash []byte, scheme algo.SAS) SAS {
	value := sasValueFromHash(sasHash)
	switch scheme {
	case algo.SASBase256:
		return SAS{Value: value, String: renderBase256(value), Scheme: scheme}
	default:
		return SAS{Value: value, String: renderBase32(value), Scheme: algo.SASBase32}
	}
}

// renderBase32 renders the top 20 bits of value as four base32 symbols,
// five bits per symbol, most-significant bit first.
func renderBase32(value uint32) string {
	out := make([]byte, 4)
	for i := 0; i < 4; i++ {
		shift := 32 - 5*(i+1)
		idx := (value >> uint(shift)) & 0x1f
		out[i] = sasBase32Alphabet[idx]
	}
	return string(out)
}

// renderBase256 renders the top 16 bits of value as one PGP word pair
// (even-word:odd-word), per RFC 6189 §4.E.
func renderBase256(value uint32) string {
	evenIdx := (value >> 24) & 0xff
	oddIdx := (value >> 16) & 0xff
	return pgpWordsEven[evenIdx] + ":" + pgpWordsOdd[oddIdx]
}

// GenerateDecoySASes produces n random SAS strings for the given scheme
// that differ from the real SAS and from each other in their displayed
// prefix (RFC 6189 §4.E: "Three decoy SAS strings are generated uniformly at
// random and must differ from the real SAS and from each other in their
// displayed prefix"). Used to offer a human verifier a multiple-choice SAS
// confirmation instead of typing the real one.
func GenerateDecoySASes(b zrtpcrypto.Backend, scheme algo.SAS, real SAS, n int) ([]SAS, error) {
	seen := map[string]bool{real.String: true}
	decoys := make([]SAS, 0, n)
	for len(decoys) < n {
		raw, err := b.RNGBytes(4)
		if err != nil {
			return nil, err
		}
		value := sasValueFromHash(raw)
		var s SAS
		if scheme == algo.SASBase256 {
			s = SAS{Value: value, String: renderBase256(value), Scheme: scheme}
		} else {
			s = SAS{Value: value, String: renderBase32(value), Scheme: algo.SASBase32}
		}
		if seen[s.String] {
			continue
		}
		seen[s.String] = true
		decoys = append(decoys, s)
	}
	return decoys, nil
}

// pgpWordsEven/pgpWordsOdd is this backend's PGP word-pair table (spec
// §4.E base256 rendering): word[i] for the even position encodes the
// high byte, word[i] for the odd position encodes the low byte of the
// rendered 16-bit prefix, in the tradition of the PGPfone word list
// referenced by original_source/bzrtp's cryptoUtils.c.
var pgpWordsEven = [256]string{

	"Baslle",
	"Beabrsh",
	"Beprnk",
	"Blathman",
	"Bleakburg",
	"Blefrty",
	"Blokny",
	"Blootland",
	"Blougrton",
	"Boozford",
	"Boudton",
	"Boushdock",
	"Braiclham",
	"Briegry",
	"Brofrmp",
	"Brouclsh",
	"Browman",
	"Cacson",
	"Cafrrt",
	"Ceathdock",
	"Ceatrman",
	"Chadver",
	"Chaicrnd",
	"Cheacldock",
	"Chobrnk",
	"Choudrsh",
	"Chougrle",
	"Chouthny",
	"Ciwdock",
	"Clafrth",
	"Clainby",
	"Cleabldy",
	"Cleacldock",
	"Clenby",
	"Cliefrsh",
	"Cliflburg",
	"Clipburg",
	"Clospman",
	"Codry",
	"Coobburg",
	"Coodmp",
	"Copver",
	"Creaclsh",
	"Creston",
	"Criecrly",
	"Crielton",
	"Crigll",
	"Crooslrt",
	"Crouthck",
	"Cufrle",
	"Daiple",
	"Daiplford",
	"Doovford",
	"Dovham",
	"Draibrnk",
	"Dreachly",
	"Drethll",
	"Droubdock",
	"Fiepdy",
	"Flacrver",
	"Flaijny",
	"Flaispby",
	"Fleachland",
	"Flemle",
	"Fliestle",
	"Flilburg",
	"Flootby",
	"Floucmp",
	"Flovle",
	"Fluhnd",
	"Foogrland",
	"Foublton",
	"Foulll",
	"Frawle",
	"Frefrt",
	"Freplss",
	"Frieshth",
	"Frietrty",
	"Frojry",
	"Frostland",
	"Gabmp",
	"Gahrt",
	"Gaispnk",
	"Giebdy",
	"Gistton",
	"Glaflng",
	"Glafrdock",
	"Glafrnd",
	"Gleagland",
	"Gleakdock",
	"Glespnd",
	"Gliebrly",
	"Gliehss",
	"Glifland",
	"Glochth",
	"Glooglly",
	"Glooglss",
	"Gluplnd",
	"Graiblford",
	"Graigrng",
	"Greapdy",
	"Gridford",
	"Griegrsh",
	"Grieslnk",
	"Grimham",
	"Grinby",
	"Grokland",
	"Grucsh",
	"Guchford",
	"Guplng",
	"Hihly",
	"Hoblck",
	"Hoohson",
	"Houslby",
	"Hudrmp",
	"Jashck",
	"Jeafrham",
	"Jeapldy",
	"Jeashby",
	"Jidll",
	"Joushrt",
	"Jouthng",
	"Kohll",
	"Koostdy",
	"Koostry",
	"Kujny",
	"Leastck",
	"Lecldy",
	"Lespson",
	"Liegnd",
	"Liwnd",
	"Loodrmp",
	"Looflver",
	"Loudly",
	"Lufrham",
	"Lurdock",
	"Meazsh",
	"Mibrnk",
	"Miewly",
	"Mithmp",
	"Moowry",
	"Mutrth",
	"Naistrt",
	"Neawrt",
	"Negrson",
	"Niglth",
	"Niwby",
	"Nodrty",
	"Nonford",
	"Noocldock",
	"Nooclll",
	"Nooflth",
	"Nushly",
	"Paishng",
	"Peafham",
	"Pemll",
	"Peplham",
	"Plaihly",
	"Planmp",
	"Plarby",
	"Plethll",
	"Plogrby",
	"Plotrll",
	"Plucrman",
	"Poowman",
	"Pouthby",
	"Praibver",
	"Praiplman",
	"Prefrham",
	"Priecll",
	"Prikly",
	"Proujsh",
	"Prourland",
	"Prownk",
	"Rablson",
	"Raille",
	"Rushton",
	"Sachng",
	"Seacby",
	"Seadll",
	"Shebrford",
	"Shecnk",
	"Shiethly",
	"Shiglth",
	"Shoblrt",
	"Shuvty",
	"Sichny",
	"Siefrth",
	"Siespsh",
	"Siglford",
	"Slaijth",
	"Slaiplth",
	"Slaiwsh",
	"Soubnd",
	"Spiehnk",
	"Stanby",
	"Steabrson",
	"Steanss",
	"Steaplnd",
	"Stiecck",
	"Stigldy",
	"Stovle",
	"Suchland",
	"Sugnk",
	"Taitdock",
	"Tarver",
	"Tavty",
	"Teaplty",
	"Teathry",
	"Teatry",
	"Thacck",
	"Thaigly",
	"Thechll",
	"Thooslnk",
	"Thouclck",
	"Tiejle",
	"Tielnk",
	"Tooblver",
	"Tooshck",
	"Trachrt",
	"Tratck",
	"Trecrng",
	"Trieplson",
	"Trierry",
	"Troutson",
	"Trozdock",
	"Trozth",
	"Vagrle",
	"Vaihnd",
	"Veatrty",
	"Vouplth",
	"Vucny",
	"Vugdock",
	"Vuspver",
	"Vussh",
	"Wagng",
	"Waiblton",
	"Weaglmp",
	"Wezford",
	"Wobrdy",
	"Woglland",
	"Woocham",
	"Wousman",
	"Zaiclnd",
	"Zegland",
	"Zepnk",
	"Zetrng",
	"Ziechth",
	"Ziegnd",
	"Zofng",
	"Zoospdy",
	"Zoubty",
	"Zoujford",
	"Zoznk",
	"Zuvss",
	"Zuwdock"}

var pgpWordsOdd = [256]string{
	"Bachmano",
	"Baizllou",
	"Betrmana",
	"Bithdyo",
	"Bleclssie",
	"Blotrlyai",
	"Blulrta",
	"Bojrto",
	"Braicmana",
	"Braidrburgou",
	"Braigsonea",
	"Brecryo",
	"Bregrtu",
	"Brifrnya",
	"Brogburgou",
	"Brudrlle",
	"Brufthe",
	"Ceachtonai",
	"Ceatrndai",
	"Cehckea",
	"Chaigrssai",
	"Chochveri",
	"Choochrtou",
	"Ciwdyi",
	"Clairnye",
	"Cleaplshea",
	"Clegrngea",
	"Cliechnyai",
	"Cliechtyu",
	"Clietrllai",
	"Cliglsonoo",
	"Clocltyou",
	"Clooslandoo",
	"Clouglhamea",
	"Clumrtou",
	"Cluslandoo",
	"Cousnyo",
	"Crahlyo",
	"Craicldyou",
	"Critmpi",
	"Croofrdockea",
	"Croofveroo",
	"Crooglmpe",
	"Croovhamie",
	"Crouzhamie",
	"Crubrlyo",
	"Cuglndou",
	"Cujmanai",
	"Daigrye",
	"Daiprtyu",
	"Deastthi",
	"Doospdyo",
	"Dourlandou",
	"Drachlyoo",
	"Dracleea",
	"Draikshea",
	"Dreagrbya",
	"Dreaspdyai",
	"Dregldyou",
	"Drichshu",
	"Droobrmanai",
	"Drooshsso",
	"Drotdyie",
	"Drouzrti",
	"Drunrtea",
	"Durleai",
	"Dusllo",
	"Faimngoo",
	"Feclbyou",
	"Fehhamo",
	"Fepldockea",
	"Fieclnki",
	"Fleaptho",
	"Fleghamo",
	"Fliflee",
	"Flooprverea",
	"Floslyu",
	"Flugrmanou",
	"Fohtye",
	"Foshlandie",
	"Fouchhamo",
	"Fouclrtea",
	"Fouthbyi",
	"Freafllye",
	"Freajhama",
	"Frealtonie",
	"Friershou",
	"Frigrlando",
	"Frishthea",
	"Froblndai",
	"Fromfordu",
	"Froublngea",
	"Fufrckai",
	"Gabllou",
	"Gaiflya",
	"Gispburgea",
	"Glaivnke",
	"Glechbyai",
	"Gleplleai",
	"Glevtyoo",
	"Glieplmpou",
	"Glierverea",
	"Glietnda",
	"Globrrye",
	"Gloobrbyou",
	"Gloslforde",
	"Graiclnyai",
	"Grermani",
	"Grohsone",
	"Haibrrtu",
	"Heavryai",
	"Hechleo",
	"Helthi",
	"Henndea",
	"Higrdyo",
	"Hishveru",
	"Hozdockai",
	"Jaizckou",
	"Jietrlandie",
	"Jipvera",
	"Jithngi",
	"Jobrleo",
	"Jouzlande",
	"Juclyea",
	"Kaflcke",
	"Kaibndou",
	"Kaicrrte",
	"Kathnyai",
	"Kieftye",
	"Kielbyou",
	"Kieltonou",
	"Kieshhamou",
	"Kieslnki",
	"Killandu",
	"Kofrdockoo",
	"Kofrdockou",
	"Kusptha",
	"Kuzshoo",
	"Leaplnkoo",
	"Liewforda",
	"Locshoo",
	"Louglngo",
	"Loumshoo",
	"Lurnyou",
	"Macfordea",
	"Miemtone",
	"Mieplnde",
	"Minngie",
	"Modfordu",
	"Moslhamai",
	"Muzshie",
	"Nicdyea",
	"Nijnkea",
	"Nishlle",
	"Nouclssea",
	"Noudlandie",
	"Nupllla",
	"Nuslmpe",
	"Pettono",
	"Pieksse",
	"Piestveri",
	"Pishrya",
	"Plaiclryai",
	"Plaiglsonoo",
	"Pleslllou",
	"Pliptyie",
	"Ploglnyai",
	"Ploslthu",
	"Ploucmanu",
	"Plouslmanie",
	"Poudrmpu",
	"Pouhburgi",
	"Poutrckie",
	"Preasplle",
	"Priebrssa",
	"Prouflnyie",
	"Prutrleoo",
	"Reatmana",
	"Riechtonea",
	"Roublmanie",
	"Safnya",
	"Saiblryai",
	"Sheawbyu",
	"Shieplbyu",
	"Shoullloo",
	"Shuflnyo",
	"Slabhama",
	"Slaicrya",
	"Slaifrlye",
	"Slaimnyi",
	"Slegrsoni",
	"Slobrshie",
	"Sloudllo",
	"Soogrlandea",
	"Sopmpe",
	"Spablthea",
	"Spamrtu",
	"Sparmpa",
	"Spoodrryo",
	"Steakmani",
	"Stieclryi",
	"Stielveri",
	"Stieslshu",
	"Stimngie",
	"Stuclryea",
	"Stufllai",
	"Stujssou",
	"Sugsonie",
	"Tabrya",
	"Tajndi",
	"Techtonou",
	"Teflsha",
	"Tegllanda",
	"Theakckie",
	"Theaslbya",
	"Thecrhami",
	"Tikllo",
	"Tistya",
	"Toghamie",
	"Tougrckou",
	"Tripldyoo",
	"Troogrvere",
	"Truglmpai",
	"Vacmpoo",
	"Veandocki",
	"Vepldyi",
	"Vielveroo",
	"Voclbyea",
	"Vojndoo",
	"Voocldyai",
	"Votrndou",
	"Voustllai",
	"Vovlandea",
	"Vugrveru",
	"Watrfordie",
	"Watrnyea",
	"Weadrhamo",
	"Weaglmpoo",
	"Wearckou",
	"Widdye",
	"Wocrsonai",
	"Wooltye",
	"Wuchckie",
	"Wucrtyu",
	"Zeabmpe",
	"Zeagrndoo",
	"Zeahdockie",
	"Zeanmani",
	"Ziefltya",
	"Zoosryai",
	"Zoozhamai",
	"Zotburgi",
	"Zoufdya",
	"Zubvera",
	"Zusllandu",
	"Zuvnyi"}
