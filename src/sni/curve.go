package sni

import "crypto/tls"

// curvesByName maps the short names the reference implementation accepts
// for ecc_curve_name (OpenSSL's NID short names) onto the tls.CurveID the
// standard library recognizes in CurvePreferences.
var curvesByName = map[string]tls.CurveID{
	"prime256v1": tls.CurveP256,
	"secp256r1":  tls.CurveP256,
	"secp384r1":  tls.CurveP384,
	"secp521r1":  tls.CurveP521,
	"x25519":     tls.X25519,
}

// resolveCurve looks up the named curve, returning UnknownCurve when the
// TLS library (here, crypto/tls) doesn't recognize it, per §4.2 step 7.
func resolveCurve(name string) (tls.CurveID, error) {
	curve, ok := curvesByName[name]
	if !ok {
		return 0, newError(UnknownCurve, name)
	}
	return curve, nil
}
