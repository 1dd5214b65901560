package repositories

import (
	"ChatRelay/models"

	"gorm.io/gorm"
)

// ICustomerRepository exposes finder methods whose names spell out the
// query they run, the convention callers read instead of SQL.
type ICustomerRepository interface {
	Create(customer *models.Customer) error
	Save(customer *models.Customer) error
	FindByID(id uint) (*models.Customer, error)
	FindByLastName(lastName string) ([]models.Customer, error)
	FindByFirstNameAndLastName(firstName, lastName string) ([]models.Customer, error)
	FindByLastNameOrderByFirstNameAsc(lastName string) ([]models.Customer, error)
	FindByAddressCity(city string) ([]models.Customer, error)
	CountByAddressCity(city string) (int64, error)
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(customer *models.Customer) error {
	return r.db.Create(customer).Error
}

func (r *CustomerRepository) Save(customer *models.Customer) error {
	return r.db.Save(customer).Error
}

func (r *CustomerRepository) FindByID(id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.Preload("Addresses").First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) FindByLastName(lastName string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Where("last_name = ?", lastName).
		Preload("Addresses").
		Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) FindByFirstNameAndLastName(firstName, lastName string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Where("first_name = ? AND last_name = ?", firstName, lastName).
		Preload("Addresses").
		Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) FindByLastNameOrderByFirstNameAsc(lastName string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Where("last_name = ?", lastName).
		Order("first_name ASC").
		Preload("Addresses").
		Find(&customers).Error
	return customers, err
}

// FindByAddressCity walks the one-to-many: customers having at least one
// address in the given city.
func (r *CustomerRepository) FindByAddressCity(city string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.
		Joins("JOIN addresses ON addresses.customer_id = customers.id").
		Where("addresses.city = ?", city).
		Distinct("customers.*").
		Preload("Addresses").
		Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) CountByAddressCity(city string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Customer{}).
		Joins("JOIN addresses ON addresses.customer_id = customers.id").
		Where("addresses.city = ?", city).
		Distinct("customers.id").
		Count(&count).Error
	return count, err
}
