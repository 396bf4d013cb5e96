package server

// Weapon kinds accepted in hit reports. Damage is accounted in integer
// quarter-hearts so repeated fractional hits can never drift.
const (
	WeaponRevolver = "revolver"
	WeaponRifle    = "rifle"
	WeaponFists    = "fists"
	WeaponKnife    = "knife"
	WeaponShovel   = "shovel"
	WeaponDynamite = "dynamite"
)

// quarterDamage resolves a weapon kind to quarter-hearts. Sidearms, long
// guns, and bare hands chip a quarter; blunt or bladed melee takes half a
// heart; explosives take a full heart. Unknown kinds fall back to the
// lightest hit rather than rejecting the report.
func quarterDamage(weapon string) int {
	switch weapon {
	case WeaponKnife, WeaponShovel:
		return 2
	case WeaponDynamite:
		return 4
	case WeaponRevolver, WeaponRifle, WeaponFists:
		return 1
	default:
		return 1
	}
}
