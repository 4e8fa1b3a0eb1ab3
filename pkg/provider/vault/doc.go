/*
Package vault implements provider.Provider on top of HashiCorp Vault's
Transit secrets engine.

Keys never leave Vault. ImportKey binds a handle to the transit key named
by the JWK "kid" and pins its latest version; Sign and Verify are sent to
the transit hmac, sign, and verify endpoints.

Supported algorithms:
  - HMAC (transit hmac key types)
  - RSASSA-PKCS1-v1_5 and RSA-PSS (rsa-2048, rsa-3072, rsa-4096)
  - ECDSA (ecdsa-p256, ecdsa-p384, ecdsa-p521), using the JWS signature marshaling
  - Ed25519

AES-GCM encryption and random value generation are delegated to a fallback
provider, usually the software provider.
*/
package vault
