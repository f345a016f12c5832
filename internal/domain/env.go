package domain

import "fmt"

// Environment selects which deployment of the platform the service talks to.
type Environment string

const (
	EnvProd Environment = "prod"
	EnvDev  Environment = "dev"
)

// ParseEnvironment validates an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(s); e {
	case EnvProd, EnvDev:
		return e, nil
	}
	return "", fmt.Errorf("unknown environment %q (want prod or dev)", s)
}

// IsProd reports whether e is the production deployment.
func (e Environment) IsProd() bool { return e == EnvProd }
