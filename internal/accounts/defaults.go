package accounts

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// Definition describes an account independently of its database identity.
// Parent refers to another definition by number.
type Definition struct {
	Number          string
	Label           string
	Nature          model.Nature
	Parent          string
	AcceptsChildren bool
	OpeningDebit    decimal.Decimal
	OpeningCredit   decimal.Decimal
}

// Fixed account roles the invoicing side of the application posts to.
const (
	RoleClients       = "clients"
	RoleFournisseurs  = "fournisseurs"
	RoleTVACollectee  = "tva_collectee"
	RoleTVADeductible = "tva_deductible"
	RoleVentes        = "ventes"
	RoleAchats        = "achats"
	RoleBanque        = "banque"
	RoleCaisse        = "caisse"
)

// Roles lists every fixed role in a stable order.
var Roles = []string{
	RoleClients, RoleFournisseurs, RoleTVACollectee, RoleTVADeductible,
	RoleVentes, RoleAchats, RoleBanque, RoleCaisse,
}

// FixedAccounts maps each fixed role to its account number in chart.
func FixedAccounts(chart model.Chart) map[string]string {
	if chart == model.ChartOHADA {
		return map[string]string{
			RoleClients:       "CM411000",
			RoleFournisseurs:  "CM401000",
			RoleTVACollectee:  "CM443100",
			RoleTVADeductible: "CM445200",
			RoleVentes:        "CM701000",
			RoleAchats:        "CM601000",
			RoleBanque:        "CM521000",
			RoleCaisse:        "CM571000",
		}
	}
	return map[string]string{
		RoleClients:       "411000",
		RoleFournisseurs:  "401000",
		RoleTVACollectee:  "445710",
		RoleTVADeductible: "445660",
		RoleVentes:        "707000",
		RoleAchats:        "607000",
		RoleBanque:        "512000",
		RoleCaisse:        "530000",
	}
}

// DefaultChart returns the starter chart of accounts for chart. Parents always
// precede their children.
func DefaultChart(chart model.Chart) []Definition {
	if chart == model.ChartOHADA {
		return ohadaChart()
	}
	return frenchChart()
}

func def(number, label string, nature model.Nature) Definition {
	return Definition{Number: number, Label: label, Nature: nature, OpeningDebit: decimal.Zero, OpeningCredit: decimal.Zero}
}

func group(number, label string, nature model.Nature) Definition {
	d := def(number, label, nature)
	d.AcceptsChildren = true
	return d
}

func under(parent string, d Definition) Definition {
	d.Parent = parent
	return d
}

// frenchChart is a subset of the Plan Comptable Général.
func frenchChart() []Definition {
	return []Definition{
		def("101000", "Capital", model.NatureLiability),
		def("109000", "Actionnaires : capital souscrit non appelé", model.NatureAssetOrLiability),
		def("106000", "Réserves", model.NatureLiability),
		def("120000", "Résultat de l'exercice (bénéfice)", model.NatureLiability),
		def("129000", "Résultat de l'exercice (perte)", model.NatureLiability),
		def("151000", "Provisions pour risques", model.NatureLiability),
		def("164000", "Emprunts auprès des établissements de crédit", model.NatureLiability),

		group("210000", "Immobilisations corporelles", model.NatureAsset),
		under("210000", def("215400", "Matériel industriel", model.NatureAsset)),
		under("210000", def("218300", "Matériel de bureau et informatique", model.NatureAsset)),
		def("281000", "Amortissements des immobilisations corporelles", model.NatureAsset),

		def("370000", "Stocks de marchandises", model.NatureAsset),

		group("401000", "Fournisseurs", model.NatureLiability),
		group("411000", "Clients", model.NatureAsset),
		def("421000", "Personnel - rémunérations dues", model.NatureLiability),
		def("445660", "TVA déductible sur autres biens et services", model.NatureAsset),
		def("445710", "TVA collectée", model.NatureLiability),

		group("512000", "Banque", model.NatureAsset),
		def("530000", "Caisse", model.NatureAsset),

		def("601000", "Achats stockés - matières premières", model.NatureExpense),
		def("607000", "Achats de marchandises", model.NatureExpense),
		def("613200", "Locations immobilières", model.NatureExpense),
		def("641000", "Rémunérations du personnel", model.NatureExpense),
		def("661100", "Intérêts des emprunts et dettes", model.NatureExpense),

		def("701000", "Ventes de produits finis", model.NatureRevenue),
		def("706000", "Prestations de services", model.NatureRevenue),
		def("707000", "Ventes de marchandises", model.NatureRevenue),
	}
}

// ohadaChart is a subset of the SYSCOHADA chart, numbers carrying the CM prefix.
func ohadaChart() []Definition {
	return []Definition{
		def("CM101000", "Capital social", model.NatureLiability),
		def("CM109000", "Actionnaires, capital souscrit non appelé", model.NatureAssetOrLiability),
		def("CM111000", "Réserves légales", model.NatureLiability),
		def("CM131000", "Résultat net : bénéfice", model.NatureLiability),
		def("CM139000", "Résultat net : perte", model.NatureLiability),
		def("CM162000", "Emprunts auprès des établissements de crédit", model.NatureLiability),
		def("CM191000", "Provisions pour litiges", model.NatureLiability),

		group("CM240000", "Matériel", model.NatureAsset),
		under("CM240000", def("CM241000", "Matériel et outillage industriel", model.NatureAsset)),
		under("CM240000", def("CM244000", "Matériel et mobilier de bureau", model.NatureAsset)),
		def("CM284000", "Amortissements du matériel", model.NatureAsset),

		def("CM311000", "Marchandises", model.NatureAsset),

		group("CM401000", "Fournisseurs, dettes en compte", model.NatureLiability),
		group("CM411000", "Clients", model.NatureAsset),
		def("CM422000", "Personnel, rémunérations dues", model.NatureLiability),
		def("CM443100", "État, TVA facturée sur ventes", model.NatureLiability),
		def("CM445200", "État, TVA récupérable sur achats", model.NatureAsset),

		group("CM521000", "Banques locales", model.NatureAsset),
		def("CM571000", "Caisse siège social", model.NatureAsset),

		def("CM601000", "Achats de marchandises", model.NatureExpense),
		def("CM605000", "Autres achats", model.NatureExpense),
		def("CM622000", "Locations et charges locatives", model.NatureExpense),
		def("CM661000", "Rémunérations directes versées au personnel", model.NatureExpense),
		def("CM671000", "Intérêts des emprunts", model.NatureExpense),

		def("CM701000", "Ventes de marchandises", model.NatureRevenue),
		def("CM706000", "Services vendus", model.NatureRevenue),

		def("CM811000", "Valeurs comptables des cessions d'immobilisations", model.NatureExpense),
		def("CM821000", "Produits des cessions d'immobilisations", model.NatureRevenue),
	}
}
